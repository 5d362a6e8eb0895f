package dataset

import "github.com/signal42/campaign-agent/internal/campaign"

// CreativeFormats returns the static format reference table.
func CreativeFormats() []campaign.CreativeFormat {
	return []campaign.CreativeFormat{
		{
			FormatID:   "display_300x250_image",
			Name:       "Medium Rectangle",
			Type:       "display",
			Dimensions: "300x250",
			Specs: campaign.CreativeFormatSpecs{
				MaxFileSize: "150KB",
				FileTypes:   []string{"jpg", "png", "gif"},
			},
		},
		{
			FormatID:   "display_728x90_image",
			Name:       "Leaderboard",
			Type:       "display",
			Dimensions: "728x90",
			Specs: campaign.CreativeFormatSpecs{
				MaxFileSize: "150KB",
				FileTypes:   []string{"jpg", "png", "gif"},
			},
		},
		{
			FormatID:   "display_970x250_image",
			Name:       "Billboard",
			Type:       "display",
			Dimensions: "970x250",
			Specs: campaign.CreativeFormatSpecs{
				MaxFileSize: "200KB",
				FileTypes:   []string{"jpg", "png", "gif"},
			},
		},
		{
			FormatID:   "display_300x600_image",
			Name:       "Half Page",
			Type:       "display",
			Dimensions: "300x600",
			Specs: campaign.CreativeFormatSpecs{
				MaxFileSize: "200KB",
				FileTypes:   []string{"jpg", "png", "gif"},
			},
		},
		{
			FormatID:   "display_320x50_image",
			Name:       "Mobile Leaderboard",
			Type:       "display",
			Dimensions: "320x50",
			Specs: campaign.CreativeFormatSpecs{
				MaxFileSize: "100KB",
				FileTypes:   []string{"jpg", "png", "gif"},
			},
		},
		{
			FormatID:   "display_320x480_image",
			Name:       "Mobile Interstitial",
			Type:       "display",
			Dimensions: "320x480",
			Specs: campaign.CreativeFormatSpecs{
				MaxFileSize: "200KB",
				FileTypes:   []string{"jpg", "png", "gif"},
			},
		},
		{
			FormatID: "video_preroll_15s",
			Name:     "Pre-roll 15s",
			Type:     "video",
			Specs: campaign.CreativeFormatSpecs{
				MaxFileSize: "10MB",
				FileTypes:   []string{"mp4", "webm"},
				MaxDuration: 15,
			},
		},
		{
			FormatID: "video_preroll_30s",
			Name:     "Pre-roll 30s",
			Type:     "video",
			Specs: campaign.CreativeFormatSpecs{
				MaxFileSize: "20MB",
				FileTypes:   []string{"mp4", "webm"},
				MaxDuration: 30,
				SkipAfter:   5,
			},
		},
		{
			FormatID: "video_outstream_15s",
			Name:     "Outstream 15s",
			Type:     "video",
			Specs: campaign.CreativeFormatSpecs{
				MaxFileSize: "10MB",
				FileTypes:   []string{"mp4", "webm"},
				MaxDuration: 15,
			},
		},
		{
			FormatID: "video_ctv_30s",
			Name:     "CTV 30s",
			Type:     "video",
			Specs: campaign.CreativeFormatSpecs{
				MaxFileSize: "50MB",
				FileTypes:   []string{"mp4"},
				MaxDuration: 30,
			},
		},
		{
			FormatID: "native_article_card",
			Name:     "Native Article Card",
			Type:     "native",
			Specs: campaign.CreativeFormatSpecs{
				HeadlineMax:     50,
				DescriptionMax:  150,
				ImageDimensions: "1200x628",
				CTAMax:          15,
			},
		},
		{
			FormatID: "native_content_rec",
			Name:     "Content Recommendation",
			Type:     "native",
			Specs: campaign.CreativeFormatSpecs{
				HeadlineMax:     70,
				ImageDimensions: "400x300",
			},
		},
		{
			FormatID: "audio_30s",
			Name:     "Audio 30s",
			Type:     "audio",
			Specs: campaign.CreativeFormatSpecs{
				MaxFileSize: "5MB",
				FileTypes:   []string{"mp3", "wav", "ogg"},
				MaxDuration: 30,
			},
		},
	}
}

// AuthorizedProperties returns the static publisher reference table.
func AuthorizedProperties() []campaign.AuthorizedProperty {
	return []campaign.AuthorizedProperty{
		{
			PropertyID:         "prop_espn",
			Name:               "ESPN",
			Domain:             "espn.com",
			Category:           "Sports",
			MonthlyUniques:     85000000,
			AuthorizationLevel: "premium",
			AvailableFormats:   []string{"display_300x250_image", "display_728x90_image", "video_preroll_15s", "video_preroll_30s"},
			DiscountPercent:    15,
			AudienceProfile:    "Sports enthusiasts, 18-54, male-skewing",
		},
		{
			PropertyID:         "prop_cnn",
			Name:               "CNN Digital",
			Domain:             "cnn.com",
			Category:           "News",
			MonthlyUniques:     120000000,
			AuthorizationLevel: "standard",
			AvailableFormats:   []string{"display_970x250_image", "display_300x600_image", "display_300x250_image", "video_ctv_30s"},
			AudienceProfile:    "News consumers, broad demographics, high-income skew on business sections",
		},
		{
			PropertyID:          "prop_weather",
			Name:                "Weather.com",
			Domain:              "weather.com",
			Category:            "Weather/Local",
			MonthlyUniques:      150000000,
			AuthorizationLevel:  "standard",
			AvailableFormats:    []string{"display_300x250_image", "display_320x50_image"},
			AudienceProfile:     "Broad reach, location-based targeting",
			SpecialCapabilities: []string{"weather-triggered creative swap", "real-time temperature targeting", "severe weather exclusion"},
		},
		{
			PropertyID:         "prop_techcrunch",
			Name:               "TechCrunch",
			Domain:             "techcrunch.com",
			Category:           "Technology",
			MonthlyUniques:     25000000,
			AuthorizationLevel: "premium",
			AvailableFormats:   []string{"display_300x250_image", "native_article_card"},
			DiscountPercent:    12,
			AudienceProfile:    "Tech professionals, startup founders, developers",
		},
		{
			PropertyID:         "prop_si",
			Name:               "Sports Illustrated",
			Domain:             "si.com",
			Category:           "Sports",
			MonthlyUniques:     40000000,
			AuthorizationLevel: "standard",
			AvailableFormats:   []string{"display_300x250_image", "display_728x90_image"},
			AudienceProfile:    "Sports fans, classic sports journalism audience",
		},
		{
			PropertyID:         "prop_bleacher",
			Name:               "Bleacher Report",
			Domain:             "bleacherreport.com",
			Category:           "Sports",
			MonthlyUniques:     60000000,
			AuthorizationLevel: "standard",
			AvailableFormats:   []string{"display_300x250_image", "video_outstream_15s"},
			AudienceProfile:    "Younger sports fans 18-34, strong mobile engagement",
		},
		{
			PropertyID:         "prop_forbes",
			Name:               "Forbes",
			Domain:             "forbes.com",
			Category:           "Business",
			MonthlyUniques:     70000000,
			AuthorizationLevel: "premium",
			AvailableFormats:   []string{"display_300x250_image", "native_article_card"},
			DiscountPercent:    8,
			AudienceProfile:    "58% HHI $100K+, 72% college educated, business decision-makers",
		},
		{
			PropertyID:         "prop_auto_news",
			Name:               "Automotive News Network",
			Domain:             "autonews.com",
			Category:           "Automotive",
			MonthlyUniques:     15000000,
			AuthorizationLevel: "premium",
			AvailableFormats:   []string{"display_300x250_image", "display_970x250_image", "video_preroll_30s"},
			DiscountPercent:    10,
			AudienceProfile:    "Auto enthusiasts, in-market car buyers",
		},
		{
			PropertyID:          "prop_spotify",
			Name:                "Spotify",
			Domain:              "spotify.com",
			Category:            "Audio/Music",
			MonthlyUniques:      220000000,
			AuthorizationLevel:  "exclusive",
			AvailableFormats:    []string{"audio_30s", "video_preroll_15s"},
			AudienceProfile:     "Music streamers, broad demographics, high engagement",
			SpecialCapabilities: []string{"podcast advertising", "music genre targeting", "playlist targeting"},
		},
		{
			PropertyID:          "prop_nyt",
			Name:                "New York Times",
			Domain:              "nytimes.com",
			Category:            "News",
			MonthlyUniques:      90000000,
			AuthorizationLevel:  "premium",
			AvailableFormats:    []string{"display_300x250_image", "display_970x250_image", "native_article_card"},
			DiscountPercent:     5,
			AudienceProfile:     "85% college educated, high-income, opinion leaders",
			SpecialCapabilities: []string{"section sponsorship", "creative approval required (48h lead time)"},
		},
	}
}
