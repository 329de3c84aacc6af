package models

import "smarthub/internal/models"

// AddRuleRequest is the body of POST /rules. Enabled defaults to true.
type AddRuleRequest struct {
	Name    string                     `json:"name"`
	Enabled *bool                      `json:"enabled"`
	Trigger *models.TriggerDescription `json:"trigger"`
	Effect  *models.EffectDescription  `json:"effect"`
}

type AddRuleResponse struct {
	ID int64 `json:"id"`
}
