package hook

import (
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Mode selects strict or lenient parsing.
type Mode int

const (
	// Strict rejects every stray token except a verbatim command tail.
	Strict Mode = iota
	// Lenient folds stray tokens into a preceding space-tolerant key.
	// Only the migrator uses it.
	Lenient
)

// ErrorKind classifies a ParseError.
type ErrorKind string

const (
	ErrTokenize     ErrorKind = "tokenize"
	ErrEmpty        ErrorKind = "empty"
	ErrUnknownType  ErrorKind = "unknown_type"
	ErrStrayToken   ErrorKind = "stray_token"
	ErrUnknownKey   ErrorKind = "unknown_key"
	ErrMissingKey   ErrorKind = "missing_key"
	ErrDuplicateKey ErrorKind = "duplicate_key"
	ErrExclusiveKey ErrorKind = "exclusive_key"
)

// ParseError describes why a payload is not a valid hook.
type ParseError struct {
	Kind    ErrorKind
	Payload string
	// Type is the type token as written (lower-cased), when one was read.
	Type string
	// Key is the offending key for key errors.
	Key string
	// Stray holds the stray tokens for ErrStrayToken.
	Stray []string
	Msg   string
	// Params holds the key=value pairs read before failing.
	Params map[string]string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Legacy reports whether the error is an unknown type from older hook
// vocabulary.
func (e *ParseError) Legacy() bool {
	return e.Kind == ErrUnknownType && IsLegacyType(e.Type)
}

// Payload strips an optional list marker and "evidence:" prefix from text.
func Payload(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimLeft(s, "-*| \t")
	if idx := strings.Index(strings.ToLower(s), Prefix); idx == 0 {
		s = s[len(Prefix):]
	}
	return strings.TrimSpace(s)
}

// Parse parses text in strict mode.
func Parse(text string) (*Hook, error) {
	return ParseMode(text, Strict)
}

// ParseLenient parses text with stray-token recovery.
func ParseLenient(text string) (*Hook, error) {
	return ParseMode(text, Lenient)
}

// ParseMode parses text (with or without the "evidence:" prefix). Validation
// order: tokenize, type, stray tokens, unknown keys, required key, key
// exclusivity.
func ParseMode(text string, mode Mode) (*Hook, error) {
	payload := Payload(text)
	tokens, err := shellquote.Split(payload)
	if err != nil {
		return nil, &ParseError{Kind: ErrTokenize, Payload: payload, Msg: "tokenization error: " + err.Error()}
	}
	if len(tokens) == 0 {
		return nil, &ParseError{Kind: ErrEmpty, Payload: payload, Msg: "empty evidence payload"}
	}

	typeTok := strings.ToLower(strings.TrimSpace(tokens[0]))
	h := &Hook{Type: Type(typeTok), Params: make(map[string]string), Raw: strings.TrimSpace(text)}

	params, order, stray, perr := splitParams(h, tokens[1:], mode)
	if !h.Type.Valid() {
		msg := fmt.Sprintf("invalid evidence type %q (valid: code, test, docs, ui)", typeTok)
		if IsLegacyType(typeTok) {
			msg = fmt.Sprintf("legacy evidence type %q is not supported by the verifier", typeTok)
		}
		return nil, &ParseError{Kind: ErrUnknownType, Payload: payload, Type: typeTok, Msg: msg, Params: params, Stray: stray}
	}
	if len(stray) > 0 {
		return nil, &ParseError{
			Kind: ErrStrayToken, Payload: payload, Type: typeTok, Stray: stray, Params: params,
			Msg: fmt.Sprintf("stray tokens not allowed (quote values with spaces): %s", strings.Join(stray, " ")),
		}
	}
	if perr != nil {
		perr.Payload, perr.Type, perr.Params = payload, typeTok, params
		return nil, perr
	}

	for _, k := range order {
		if !knownKeys[k] {
			return nil, &ParseError{Kind: ErrUnknownKey, Payload: payload, Type: typeTok, Key: k, Params: params,
				Msg: fmt.Sprintf("invalid key %q for type %q", k, typeTok)}
		}
	}
	for _, k := range order {
		if !allowedKeys[h.Type][k] {
			return nil, &ParseError{Kind: ErrExclusiveKey, Payload: payload, Type: typeTok, Key: k, Params: params,
				Msg: fmt.Sprintf("key %q is not valid for type %q%s", k, typeTok, exclusiveHint(k))}
		}
	}
	req := requiredKey[h.Type]
	if strings.TrimSpace(params[req]) == "" {
		return nil, &ParseError{Kind: ErrMissingKey, Payload: payload, Type: typeTok, Key: req, Params: params,
			Msg: fmt.Sprintf("missing required key: %s=", req)}
	}

	h.Params = params
	return h, nil
}

// splitParams reads key=value tokens. Stray tokens are folded into the
// preceding key when the mode allows it and returned otherwise.
func splitParams(h *Hook, tokens []string, mode Mode) (map[string]string, []string, []string, *ParseError) {
	params := make(map[string]string)
	var order, stray []string
	var firstErr *ParseError
	last := ""

	for _, tok := range tokens {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			switch {
			case last == "command" && h.Type == TypeTest:
				params[last] = joinWord(params[last], tok)
				h.CommandTail = true
			case mode == Lenient && spaceTolerantKeys[last]:
				params[last] = joinWord(params[last], tok)
				if !contains(h.Recovered, last) {
					h.Recovered = append(h.Recovered, last)
				}
			default:
				stray = append(stray, tok)
				last = ""
			}
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			if firstErr == nil {
				firstErr = &ParseError{Kind: ErrUnknownKey, Msg: fmt.Sprintf("empty key in %q", tok)}
			}
			last = ""
			continue
		}
		if _, dup := params[key]; dup {
			if firstErr == nil {
				firstErr = &ParseError{Kind: ErrDuplicateKey, Key: key, Msg: fmt.Sprintf("duplicate key %q", key)}
			}
			last = ""
			continue
		}
		params[key] = value
		order = append(order, key)
		last = key
	}
	return params, order, stray, firstErr
}

func exclusiveHint(key string) string {
	var owners []string
	for _, t := range Types {
		if allowedKeys[t][key] {
			owners = append(owners, string(t))
		}
	}
	if len(owners) == 0 {
		return ""
	}
	return " (only valid for " + strings.Join(owners, ", ") + ")"
}

func joinWord(value, word string) string {
	if value == "" {
		return word
	}
	return value + " " + word
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
