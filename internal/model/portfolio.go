package model

// Holding is one row of the portfolio allocation list.
type Holding struct {
	Name       string  `yaml:"name" json:"name"`             // business or wallet label
	Percentage float64 `yaml:"percentage" json:"percentage"` // share of the fund
}

// Transaction is one row of the recent deposits table.
type Transaction struct {
	Time   string  `yaml:"time" json:"time"`
	Amount float64 `yaml:"amount" json:"amount"`
	Token  string  `yaml:"token" json:"token"`
	Link   string  `yaml:"link" json:"link"` // block explorer URL
}

// Portfolio groups the presentation data for the portfolio page.
type Portfolio struct {
	Holdings     []Holding     `yaml:"holdings" json:"holdings"`
	Transactions []Transaction `yaml:"transactions" json:"transactions"`
}
