package config

// BillingConfig is the externally configurable billing surface: per-action
// credit costs, subscription plans and credit packs with their Stripe price
// identifiers. It is loaded once and passed into the services at
// construction time.
type BillingConfig struct {
	// ActionCosts maps an action key (e.g. "resume_create") to its credit
	// cost. Actions missing from the map fall back to DefaultActionCost.
	ActionCosts       map[string]int64 `yaml:"action_costs"`
	DefaultActionCost int64            `yaml:"default_action_cost"`

	// SignupCredits is the one-time grant on account creation.
	SignupCredits int64 `yaml:"signup_credits"`

	Plans map[string]PlanConfig `yaml:"plans"`
	Packs map[string]PackConfig `yaml:"packs"`
}

// PlanConfig describes one subscription plan ("monthly" or "yearly").
type PlanConfig struct {
	PriceID     string `yaml:"price_id"`
	AmountCents int64  `yaml:"amount_cents"`
	Currency    string `yaml:"currency"`
	Credits     int64  `yaml:"credits"`
}

// PackConfig describes a one-time credit pack.
type PackConfig struct {
	PriceID     string `yaml:"price_id"`
	AmountCents int64  `yaml:"amount_cents"`
	Currency    string `yaml:"currency"`
	Credits     int64  `yaml:"credits"`
}

func (c *BillingConfig) ApplyDefaults() {
	if c.DefaultActionCost <= 0 {
		c.DefaultActionCost = 1
	}
	if c.SignupCredits < 0 {
		c.SignupCredits = 0
	}
	if c.ActionCosts == nil {
		c.ActionCosts = map[string]int64{}
	}
	if c.Plans == nil {
		c.Plans = map[string]PlanConfig{}
	}
	if c.Packs == nil {
		c.Packs = map[string]PackConfig{}
	}
}

// ActionCost returns the credit cost for an action key.
func (c *BillingConfig) ActionCost(action string) int64 {
	if cost, ok := c.ActionCosts[action]; ok {
		return cost
	}
	return c.DefaultActionCost
}

// Plan returns the plan config for a plan key ("monthly" or "yearly").
func (c *BillingConfig) Plan(key string) (PlanConfig, bool) {
	plan, ok := c.Plans[key]
	return plan, ok
}

// PlanByPriceID resolves a plan key and config from a Stripe price ID.
func (c *BillingConfig) PlanByPriceID(priceID string) (string, PlanConfig, bool) {
	for key, plan := range c.Plans {
		if plan.PriceID == priceID {
			return key, plan, true
		}
	}
	return "", PlanConfig{}, false
}

// Pack returns the credit pack config for a pack key.
func (c *BillingConfig) Pack(key string) (PackConfig, bool) {
	pack, ok := c.Packs[key]
	return pack, ok
}
