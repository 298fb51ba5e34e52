package main

import (
	"encoding/json"
	"fmt"
	"os"

	api "bioevo/pkg/bioevo"
)

// loadRunRequestFromConfig reads an evolve request from JSON. Tissue geometry
// lives under a nested "tissue" object.
func loadRunRequestFromConfig(path string) (api.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return api.RunRequest{}, err
	}

	var req api.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["generator"]); ok {
		req.Generator = v
	}
	if v, ok := asString(raw["target"]); ok {
		req.TargetPath = v
	}
	if v, ok := asBool(raw["tile_target"]); ok {
		req.TileTarget = v
	}
	if v, ok := asString(raw["perturbed"]); ok {
		req.PerturbedPath = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asString(raw["variant"]); ok {
		req.Variant = v
	}
	if v, ok := asFloat64(raw["cxpb"]); ok {
		req.CXPB = api.Float64(v)
	}
	if v, ok := asFloat64(raw["mutpb"]); ok {
		req.MUTPB = api.Float64(v)
	}
	if v, ok := asFloat64(raw["alpha"]); ok {
		req.Alpha = api.Float64(v)
	}
	if v, ok := asFloat64(raw["sigma"]); ok {
		req.Sigma = api.Float64(v)
	}
	if v, ok := asFloat64(raw["indpb"]); ok {
		req.Indpb = api.Float64(v)
	}
	if v, ok := asInt(raw["tournament_size"]); ok {
		req.TournamentSize = v
	}
	if v, ok := asInt(raw["elite_count"]); ok {
		req.EliteCount = v
	}
	if v, ok := asBool(raw["no_elitism"]); ok {
		req.NoElitism = v
	}
	if v, ok := asInt(raw["hall_of_fame_size"]); ok {
		req.HallOfFameSize = v
	}
	if v, ok := asFloat64(raw["lower"]); ok {
		req.Lower = api.Float64(v)
	}
	if v, ok := asFloat64(raw["upper"]); ok {
		req.Upper = api.Float64(v)
	}
	if v, ok := asInt(raw["refine_attempts"]); ok {
		req.RefineAttempts = v
	}
	if v, ok := asBool(raw["tolerate_non_finite"]); ok {
		req.TolerateNonFinite = v
	}

	if t, ok := raw["tissue"].(map[string]any); ok {
		if v, ok := asString(t["preset"]); ok {
			req.Tissue.Preset = v
		}
		if v, ok := asInt(t["rows"]); ok {
			req.Tissue.Rows = v
		}
		if v, ok := asInt(t["cols"]); ok {
			req.Tissue.Cols = v
		}
		if v, ok := asBool(t["one_d"]); ok {
			req.Tissue.OneD = v
		}
		if v, ok := asString(t["rule"]); ok {
			req.Tissue.Rule = v
		}
		if v, ok := asString(t["rule_expr"]); ok {
			req.Tissue.RuleExpr = v
		}
		if v, ok := asFloat64(t["multiplier"]); ok {
			req.Tissue.Multiplier = v
		}
		if v, ok := asInt(t["leading_cells"]); ok {
			req.Tissue.LeadingCells = v
		}
		if v, ok := asFloat64(t["rate_scale"]); ok {
			req.Tissue.RateScale = v
		}
		if v, ok := asFloat64(t["coupling"]); ok {
			req.Tissue.Coupling = v
		}
		if v, ok := asFloat64(t["t_start"]); ok {
			req.Tissue.TimeStart = v
		}
		if v, ok := asFloat64(t["t_end"]); ok {
			req.Tissue.TimeEnd = v
		}
		if v, ok := asInt(t["points"]); ok {
			req.Tissue.TimePoints = v
		}
		if v, ok := asFloat64(t["x0"]); ok {
			req.Tissue.InitialX = v
		}
		if v, ok := asFloat64(t["v0"]); ok {
			req.Tissue.InitialV = v
		}
		if v, ok := asInt(t["substeps"]); ok {
			req.Tissue.Substeps = v
		}
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func overrideFromFlags(req *api.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name, explicit := range set {
		v, ok := flagValue[name]
		if !explicit || !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "generator":
			req.Generator = v.(string)
		case "target":
			req.TargetPath = v.(string)
		case "tile-target":
			req.TileTarget = v.(bool)
		case "perturbed":
			req.PerturbedPath = v.(string)
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "workers":
			req.Workers = v.(int)
		case "variant":
			req.Variant = v.(string)
		case "cxpb":
			req.CXPB = api.Float64(v.(float64))
		case "mutpb":
			req.MUTPB = api.Float64(v.(float64))
		case "alpha":
			req.Alpha = api.Float64(v.(float64))
		case "sigma":
			req.Sigma = api.Float64(v.(float64))
		case "indpb":
			req.Indpb = api.Float64(v.(float64))
		case "tournament":
			req.TournamentSize = v.(int)
		case "elite":
			req.EliteCount = v.(int)
		case "no-elitism":
			req.NoElitism = v.(bool)
		case "hof":
			req.HallOfFameSize = v.(int)
		case "lower":
			req.Lower = api.Float64(v.(float64))
		case "upper":
			req.Upper = api.Float64(v.(float64))
		case "refine":
			req.RefineAttempts = v.(int)
		case "tolerate-non-finite":
			req.TolerateNonFinite = v.(bool)
		case "preset":
			req.Tissue.Preset = v.(string)
		case "rows":
			req.Tissue.Rows = v.(int)
		case "cols":
			req.Tissue.Cols = v.(int)
		case "one-d":
			req.Tissue.OneD = v.(bool)
		case "rule":
			req.Tissue.Rule = v.(string)
		case "rule-expr":
			req.Tissue.RuleExpr = v.(string)
		case "multiplier":
			req.Tissue.Multiplier = v.(float64)
		case "leading-cells":
			req.Tissue.LeadingCells = v.(int)
		case "rate-scale":
			req.Tissue.RateScale = v.(float64)
		case "coupling":
			req.Tissue.Coupling = v.(float64)
		case "t-start":
			req.Tissue.TimeStart = v.(float64)
		case "t-end":
			req.Tissue.TimeEnd = v.(float64)
		case "points":
			req.Tissue.TimePoints = v.(int)
		case "x0":
			req.Tissue.InitialX = v.(float64)
		case "v0":
			req.Tissue.InitialV = v.(float64)
		case "substeps":
			req.Tissue.Substeps = v.(int)
		default:
			return fmt.Errorf("flag %s cannot override a config file", name)
		}
	}
	if req.Generator == "" {
		req.Generator = "tissue"
	}
	return nil
}

func loadOrDefaultRunRequest(configPath string) (api.RunRequest, error) {
	if configPath == "" {
		return api.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return api.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
