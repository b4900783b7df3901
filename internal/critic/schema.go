package critic

// critiqueSchema is the closed response schema sent with every generation
// request. The provider treats it as a hint; roast.DecodeCritique is the
// enforcement that counts.
func critiqueSchema() map[string]any {
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"verdict": map[string]any{
				"type":        "INTEGER",
				"description": "Overall score from 1 (disaster) to 100 (flawless).",
				"minimum":     1,
				"maximum":     100,
			},
			"mayhemMeter": map[string]any{
				"type":        "INTEGER",
				"description": "Visual chaos level from 1 to 10.",
				"minimum":     1,
				"maximum":     10,
			},
			"profile": map[string]any{
				"type":        "STRING",
				"description": "A short archetype label for the site.",
			},
			"openingStatement": map[string]any{
				"type": "STRING",
			},
			"caseFiles": map[string]any{
				"type":        "STRING",
				"description": "Detailed breakdown, at least 250 words.",
			},
			"spiritAnimal": map[string]any{
				"type": "STRING",
			},
			"rehabilitationProgram": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"priorityDirective": map[string]any{
						"type": "STRING",
					},
					"correctiveActions": map[string]any{
						"type":     "ARRAY",
						"minItems": 4,
						"items": map[string]any{
							"type": "OBJECT",
							"properties": map[string]any{
								"offense": map[string]any{"type": "STRING"},
								"remedy":  map[string]any{"type": "STRING"},
							},
							"required":         []string{"offense", "remedy"},
							"propertyOrdering": []string{"offense", "remedy"},
						},
					},
				},
				"required":         []string{"priorityDirective", "correctiveActions"},
				"propertyOrdering": []string{"priorityDirective", "correctiveActions"},
			},
		},
		"required": []string{
			"verdict", "mayhemMeter", "profile", "openingStatement",
			"caseFiles", "spiritAnimal", "rehabilitationProgram",
		},
		"propertyOrdering": []string{
			"verdict", "mayhemMeter", "profile", "openingStatement",
			"caseFiles", "spiritAnimal", "rehabilitationProgram",
		},
	}
}
