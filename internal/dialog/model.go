package dialog

// State is the chat's current step. Registration steps reuse the
// registration machine's state names.
type State string

const StateIdle State = "idle"

// Payload keys written by the bot.
const (
	KeySite      = "site"
	KeyCategory  = "category"
	KeyMaterial  = "material"
	KeyQuantity  = "quantity"
	KeyAttemptID = "attempt_id"
	KeyLastMsgID = "last_mid"
)

type Payload map[string]any

type Item struct {
	ChatID  int64
	State   State
	Payload Payload
}

// GetString reads a string value from the payload.
func GetString(p Payload, key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt reads a number written by encoding/json (float64) or set directly.
func GetInt(p Payload, key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
