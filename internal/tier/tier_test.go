package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonthlyLimits(t *testing.T) {
	assert.Equal(t, 1, MonthlyLimit(Basic))
	assert.Equal(t, 50, MonthlyLimit(Pro))
	assert.Equal(t, UnlimitedExports, MonthlyLimit(Premium))
	assert.True(t, Unlimited(Premium))
	assert.False(t, Unlimited(Basic))
}

func TestUnknownTierFallsBackToBasic(t *testing.T) {
	assert.Equal(t, MonthlyLimit(Basic), MonthlyLimit(Tier("gold")))
	assert.False(t, AllowsChannel(Tier("gold"), ChannelMail))
}

func TestChannelGating(t *testing.T) {
	for _, tr := range []Tier{Basic, Pro, Premium} {
		assert.True(t, AllowsChannel(tr, ChannelDownload), tr)
		assert.True(t, AllowsChannel(tr, ChannelEmail), tr)
	}
	assert.False(t, AllowsChannel(Basic, ChannelMail))
	assert.True(t, AllowsChannel(Pro, ChannelMail))
	assert.True(t, AllowsChannel(Premium, ChannelMail))
}

func TestFormatGating(t *testing.T) {
	assert.True(t, AllowsFormat(Basic, FormatDocument))
	assert.False(t, AllowsFormat(Basic, FormatSlides))
	assert.True(t, AllowsFormat(Pro, FormatSlides))
	assert.True(t, AllowsFormat(Premium, FormatSlides))
}

func TestParsers(t *testing.T) {
	got, err := Parse("pro")
	assert.NoError(t, err)
	assert.Equal(t, Pro, got)
	_, err = Parse("gold")
	assert.Error(t, err)

	ch, err := ParseChannel("mail")
	assert.NoError(t, err)
	assert.Equal(t, ChannelMail, ch)
	_, err = ParseChannel("fax")
	assert.Error(t, err)

	f, err := ParseFormat("slides")
	assert.NoError(t, err)
	assert.Equal(t, FormatSlides, f)
	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}
