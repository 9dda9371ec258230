package botclassifier

// DefaultRules returns a sensible out-of-the-box registry covering the
// search/social crawlers this proxy exists to serve (ActionRender),
// plus monitoring and generic-automation agents tagged ActionAllow.
// All of them are classified as bots, so the router sends each of them
// down the render path; ActionAllow only means the request is not
// blocked.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "googlebot-ua", Enabled: true, Kind: KindUserAgent, Pattern: "Googlebot", Action: ActionRender, Priority: 100, BotType: BotGooglebot},
		{ID: "google-other-ua", Enabled: true, Kind: KindUserAgent, Pattern: "Google-InspectionTool", Action: ActionRender, Priority: 100, BotType: BotGooglebot},
		{ID: "bingbot-ua", Enabled: true, Kind: KindUserAgent, Pattern: "bingbot", Action: ActionRender, Priority: 100, BotType: BotBingbot},

		{ID: "facebook-social-ua", Enabled: true, Kind: KindUserAgent, Pattern: "facebookexternalhit", Action: ActionRender, Priority: 90, BotType: BotSocial},
		{ID: "twitter-social-ua", Enabled: true, Kind: KindUserAgent, Pattern: "Twitterbot", Action: ActionRender, Priority: 90, BotType: BotSocial},
		{ID: "linkedin-social-ua", Enabled: true, Kind: KindUserAgent, Pattern: "LinkedInBot", Action: ActionRender, Priority: 90, BotType: BotSocial},
		{ID: "slack-social-ua", Enabled: true, Kind: KindUserAgent, Pattern: "Slackbot", Action: ActionRender, Priority: 90, BotType: BotSocial},
		{ID: "discord-social-ua", Enabled: true, Kind: KindUserAgent, Pattern: "Discordbot", Action: ActionRender, Priority: 90, BotType: BotSocial},
		{ID: "whatsapp-social-ua", Enabled: true, Kind: KindUserAgent, Pattern: "WhatsApp", Action: ActionRender, Priority: 90, BotType: BotSocial},

		{ID: "pingdom-monitoring-ua", Enabled: true, Kind: KindUserAgent, Pattern: "Pingdom", Action: ActionAllow, Priority: 80, BotType: BotMonitoring},
		{ID: "uptimerobot-monitoring-ua", Enabled: true, Kind: KindUserAgent, Pattern: "UptimeRobot", Action: ActionAllow, Priority: 80, BotType: BotMonitoring},
		{ID: "statuscake-monitoring-ua", Enabled: true, Kind: KindUserAgent, Pattern: "StatusCake", Action: ActionAllow, Priority: 80, BotType: BotMonitoring},
		{ID: "newrelic-monitoring-ua", Enabled: true, Kind: KindUserAgent, Pattern: "NewRelic", Action: ActionAllow, Priority: 80, BotType: BotMonitoring},

		{ID: "ahrefs-automation-ua", Enabled: true, Kind: KindUserAgent, Pattern: "AhrefsBot", Action: ActionAllow, Priority: 70, BotType: BotAutomation},
		{ID: "semrush-automation-ua", Enabled: true, Kind: KindUserAgent, Pattern: "SemrushBot", Action: ActionAllow, Priority: 70, BotType: BotAutomation},
		{ID: "mj12-automation-ua", Enabled: true, Kind: KindUserAgent, Pattern: "MJ12bot", Action: ActionAllow, Priority: 70, BotType: BotAutomation},
	}
}
