package device

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		ua       string
		wantType Type
		wantBot  bool
	}{
		{
			name:     "empty",
			ua:       "",
			wantType: Unknown,
		},
		{
			name:     "desktop_chrome",
			ua:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			wantType: Desktop,
		},
		{
			name:     "iphone",
			ua:       "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			wantType: Mobile,
		},
		{
			name:     "ipad",
			ua:       "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			wantType: Tablet,
		},
		{
			name:     "googlebot",
			ua:       "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			wantType: Bot,
			wantBot:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Parse(tt.ua)
			if info.DeviceType != tt.wantType {
				t.Errorf("DeviceType = %q, want %q", info.DeviceType, tt.wantType)
			}
			if info.IsBot != tt.wantBot {
				t.Errorf("IsBot = %v, want %v", info.IsBot, tt.wantBot)
			}
		})
	}
}

func TestInfoMap(t *testing.T) {
	m := Parse("curl/8.4.0").Map()
	for _, key := range []string{"browser", "browser_version", "os", "platform", "device_type", "is_mobile", "is_bot"} {
		if _, ok := m[key]; !ok {
			t.Errorf("expected key %q in device map", key)
		}
	}
}
