package room

import "strings"

type ProviderInsight struct {
	Quality string `json:"quality"`
	Label   string `json:"label"`
	Note    string `json:"note"`
}

type providerRule struct {
	hosts   []string
	insight ProviderInsight
}

var providerRules = []providerRule{
	{
		hosts:   []string{"youtube.com", "youtu.be"},
		insight: ProviderInsight{Quality: "good", Label: "YouTube", Note: "Use the YouTube option for full playback sync."},
	},
	{
		hosts:   []string{"vimeo.com"},
		insight: ProviderInsight{Quality: "good", Label: "Vimeo", Note: "Embeddable player, usually works well."},
	},
	{
		hosts:   []string{"dailymotion.com", "dai.ly"},
		insight: ProviderInsight{Quality: "good", Label: "Dailymotion", Note: "Embeddable player, usually works well."},
	},
	{
		hosts:   []string{"twitch.tv"},
		insight: ProviderInsight{Quality: "warn", Label: "Twitch", Note: "Live streams cannot be kept in sync."},
	},
	{
		hosts:   []string{"netflix.com", "primevideo.com", "disneyplus.com", "hulu.com", "max.com"},
		insight: ProviderInsight{Quality: "warn", Label: "Streaming service", Note: "DRM sites usually refuse embedding; everyone may need their own tab."},
	},
}

var unknownProvider = ProviderInsight{
	Quality: "warn",
	Label:   "Unknown site",
	Note:    "This site may block embedding; playback is not synchronized.",
}

// providerInsight classifies host (lowercase, without "www.") against the
// known provider list. It is advisory only.
func providerInsight(host string) ProviderInsight {
	for _, rule := range providerRules {
		for _, h := range rule.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return rule.insight
			}
		}
	}

	return unknownProvider
}
