package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/camuig/llm-arena/internal/models"
)

// invalidJSONMarker is what chat servers answer with when the model could not
// honour the JSON output format.
const invalidJSONMarker = "Invalid JSON"

var thinkTagRegex = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

var (
	signalKeys        = []string{"signal", "action"}
	justificationKeys = []string{"justification", "reason", "reasoning"}
	numericKeys       = []string{"stop_loss", "leverage", "risk_usd", "profit_target", "quantity"}
)

var signalSynonyms = map[string]models.Signal{
	"buy_to_enter":   models.SignalBuyToEnter,
	"buy":            models.SignalBuyToEnter,
	"long":           models.SignalBuyToEnter,
	"go_long":        models.SignalBuyToEnter,
	"open_long":      models.SignalBuyToEnter,
	"enter_long":     models.SignalBuyToEnter,
	"sell_to_enter":  models.SignalSellToEnter,
	"sell":           models.SignalSellToEnter,
	"short":          models.SignalSellToEnter,
	"go_short":       models.SignalSellToEnter,
	"open_short":     models.SignalSellToEnter,
	"enter_short":    models.SignalSellToEnter,
	"hold":           models.SignalHold,
	"wait":           models.SignalHold,
	"stay":           models.SignalHold,
	"keep":           models.SignalHold,
	"neutral":        models.SignalHold,
	"none":           models.SignalHold,
	"no_action":      models.SignalHold,
	"close":          models.SignalClose,
	"exit":           models.SignalClose,
	"close_position": models.SignalClose,
	"flatten":        models.SignalClose,
}

// SplitThinking separates <think> reasoning blocks from the answer text.
func SplitThinking(text string) (answer, thinking string) {
	var parts []string
	for _, m := range thinkTagRegex.FindAllStringSubmatch(text, -1) {
		if t := strings.TrimSpace(m[1]); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.TrimSpace(thinkTagRegex.ReplaceAllString(text, "")), strings.Join(parts, "\n")
}

func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		if nl := strings.Index(cleaned, "\n"); nl >= 0 && !strings.ContainsAny(cleaned[:nl], "{[") {
			cleaned = cleaned[nl+1:]
		}
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

// ParseDecisions decodes a raw model answer into a decision list.
// It strips fences and surrounding prose, normalizes the common answer shapes
// into {"decisions": [...]} and validates the result against the decision
// schema. Handles: decisions list, single decision object, symbol-keyed map.
func ParseDecisions(text string) (models.DecisionList, error) {
	answer, _ := SplitThinking(text)
	cleaned := stripFences(answer)
	if cleaned == "" {
		return models.DecisionList{}, errors.New("empty response")
	}

	if strings.Contains(cleaned, invalidJSONMarker) {
		return models.DecisionList{}, fmt.Errorf("model reported invalid JSON: %.200s", cleaned)
	}
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return models.DecisionList{}, fmt.Errorf("no JSON object in response: %.200s", cleaned)
	}

	candidate := cleaned[start : end+1]
	if !gjson.Valid(candidate) {
		return models.DecisionList{}, fmt.Errorf("invalid JSON object: %.200s", candidate)
	}
	root := gjson.Parse(candidate)
	if apiErr := root.Get("error"); apiErr.Exists() && !root.Get("decisions").Exists() {
		return models.DecisionList{}, fmt.Errorf("provider error: %s", apiErr.String())
	}

	canonical, err := canonicalize(root)
	if err != nil {
		return models.DecisionList{}, err
	}
	raw, err := json.Marshal(canonical)
	if err != nil {
		return models.DecisionList{}, fmt.Errorf("encode canonical decisions: %w", err)
	}
	if err := validateDecisions(raw); err != nil {
		return models.DecisionList{}, fmt.Errorf("validate decisions: %w", err)
	}

	var list models.DecisionList
	if err := json.Unmarshal(raw, &list); err != nil {
		return models.DecisionList{}, fmt.Errorf("decode decisions: %w", err)
	}
	if list.Decisions == nil {
		list.Decisions = []models.TradeDecision{}
	}
	return list, nil
}

func canonicalize(root gjson.Result) (map[string]any, error) {
	decisions := make([]any, 0)

	switch {
	case root.Get("decisions").Exists():
		list := root.Get("decisions")
		if !list.IsArray() {
			return nil, errors.New("decisions must be an array")
		}
		for _, item := range list.Array() {
			if !item.IsObject() {
				return nil, errors.New("decision entries must be objects")
			}
			d, _ := normalizeDecision(item, "", true)
			decisions = append(decisions, d)
		}
	case firstString(root, signalKeys...) != "":
		d, _ := normalizeDecision(root, "", true)
		decisions = append(decisions, d)
	case isSymbolMap(root):
		entries := make(map[string]gjson.Result)
		root.ForEach(func(key, value gjson.Result) bool {
			entries[key.String()] = value
			return true
		})
		symbols := make([]string, 0, len(entries))
		for s := range entries {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)
		for _, s := range symbols {
			if d, ok := normalizeDecision(entries[s], s, false); ok {
				decisions = append(decisions, d)
			}
		}
	default:
		return nil, errors.New("unrecognized response shape")
	}

	return map[string]any{"decisions": decisions}, nil
}

func isSymbolMap(root gjson.Result) bool {
	if !root.IsObject() {
		return false
	}
	n := 0
	all := true
	root.ForEach(func(_, value gjson.Result) bool {
		n++
		if !value.IsObject() {
			all = false
			return false
		}
		return true
	})
	return n > 0 && all
}

// normalizeDecision maps one decision object onto the canonical field names.
// In strict mode unknown values are passed through for the schema to reject;
// otherwise entries without a recognizable action are dropped and missing
// text fields get neutral defaults.
func normalizeDecision(obj gjson.Result, symbolKey string, strict bool) (map[string]any, bool) {
	out := make(map[string]any)

	symbol := strings.TrimSpace(obj.Get("symbol").String())
	if symbol == "" {
		symbol = strings.TrimSpace(symbolKey)
	}
	if symbol != "" {
		out["symbol"] = strings.ToUpper(symbol)
	}

	rawSignal := firstString(obj, signalKeys...)
	switch signal := canonicalSignal(rawSignal); {
	case signal != "":
		out["signal"] = string(signal)
	case !strict:
		return nil, false
	case rawSignal != "":
		out["signal"] = rawSignal
	}

	if r := obj.Get("confidence"); r.Exists() && r.Type != gjson.Null {
		if v, ok := coerceFloat(r); ok {
			if v > 1 && v <= 100 {
				v /= 100
			}
			out["confidence"] = v
		} else {
			out["confidence"] = r.Value()
		}
	} else if !strict {
		out["confidence"] = 0.0
	}

	if j := firstString(obj, justificationKeys...); j != "" {
		out["justification"] = j
	} else if !strict {
		out["justification"] = ""
	}

	for _, key := range numericKeys {
		r := obj.Get(key)
		if !r.Exists() || r.Type == gjson.Null {
			continue
		}
		if v, ok := coerceFloat(r); ok {
			out[key] = v
		} else {
			out[key] = r.Value()
		}
	}

	if r := obj.Get("invalidation_condition"); r.Exists() && r.Type != gjson.Null {
		out["invalidation_condition"] = r.String()
	}

	return out, true
}

func canonicalSignal(raw string) models.Signal {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	return signalSynonyms[key]
}

func firstString(obj gjson.Result, keys ...string) string {
	for _, k := range keys {
		r := obj.Get(k)
		if r.Exists() && r.Type == gjson.String {
			if s := strings.TrimSpace(r.Str); s != "" {
				return s
			}
		}
	}
	return ""
}

func coerceFloat(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Float(), true
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		s = strings.TrimPrefix(s, "$")
		s = strings.TrimSuffix(s, "%")
		s = strings.ReplaceAll(s, ",", "")
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return v, err == nil
	default:
		return 0, false
	}
}
