package core

// Currencies offered on the settings page.
var Currencies = []string{"₹", "$", "€", "£", "¥"}

const DefaultCurrency = "₹"

// Settings are per-user display preferences stored on the profile and passed to
// every rendered page.
type Settings struct {
	DisplayName string
	DarkMode    bool
	CompactMode bool
	Currency    string
}

func DefaultSettings() Settings {
	return Settings{Currency: DefaultCurrency}
}

// Symbol returns the configured currency, falling back to the default.
func (s Settings) Symbol() string {
	if IsCurrency(s.Currency) {
		return s.Currency
	}
	return DefaultCurrency
}

func IsCurrency(c string) bool {
	for _, x := range Currencies {
		if x == c {
			return true
		}
	}
	return false
}
