package domain

type Weather struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
}

type Dashboard struct {
	Account        *Account `json:"account"`
	Partner        *Account `json:"partner,omitempty"`
	Weather        *Weather `json:"weather,omitempty"`
	PartnerWeather *Weather `json:"partnerWeather,omitempty"`
	Upcoming       []Event  `json:"upcoming"`
}
