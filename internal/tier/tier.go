package tier

import "fmt"

// Tier is a subscription level. Limits and capabilities live in one table so
// gating rules are declared in a single place.
type Tier string

const (
	Basic   Tier = "basic"
	Pro     Tier = "pro"
	Premium Tier = "premium"
)

// Channel is a delivery mechanism for a rendered artifact.
type Channel string

const (
	ChannelDownload Channel = "download"
	ChannelEmail    Channel = "email"
	ChannelMail     Channel = "mail"
)

// Format is an output representation of a presentation.
type Format string

const (
	FormatDocument Format = "document"
	FormatSlides   Format = "slides"
)

// UnlimitedExports marks a tier with no monthly export cap.
const UnlimitedExports = -1

type Capability struct {
	MonthlyLimit int
	Formats      map[Format]bool
	Channels     map[Channel]bool
}

var capabilities = map[Tier]Capability{
	Basic: {
		MonthlyLimit: 1,
		Formats:      map[Format]bool{FormatDocument: true},
		Channels:     map[Channel]bool{ChannelDownload: true, ChannelEmail: true},
	},
	Pro: {
		MonthlyLimit: 50,
		Formats:      map[Format]bool{FormatDocument: true, FormatSlides: true},
		Channels:     map[Channel]bool{ChannelDownload: true, ChannelEmail: true, ChannelMail: true},
	},
	Premium: {
		MonthlyLimit: UnlimitedExports,
		Formats:      map[Format]bool{FormatDocument: true, FormatSlides: true},
		Channels:     map[Channel]bool{ChannelDownload: true, ChannelEmail: true, ChannelMail: true},
	},
}

func Parse(s string) (Tier, error) {
	switch Tier(s) {
	case Basic, Pro, Premium:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelDownload, ChannelEmail, ChannelMail:
		return Channel(s), nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatDocument, FormatSlides:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// MonthlyLimit returns the tier's export cap, UnlimitedExports for no cap.
// Unknown tiers get the Basic limit.
func MonthlyLimit(t Tier) int {
	if c, ok := capabilities[t]; ok {
		return c.MonthlyLimit
	}
	return capabilities[Basic].MonthlyLimit
}

func Unlimited(t Tier) bool { return MonthlyLimit(t) == UnlimitedExports }

func AllowsChannel(t Tier, ch Channel) bool {
	c, ok := capabilities[t]
	if !ok {
		c = capabilities[Basic]
	}
	return c.Channels[ch]
}

func AllowsFormat(t Tier, f Format) bool {
	c, ok := capabilities[t]
	if !ok {
		c = capabilities[Basic]
	}
	return c.Formats[f]
}
