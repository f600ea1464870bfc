package threads

import (
	"github.com/tidwall/gjson"

	"github.com/PabloGalante/farum-chat/internal/domain"
)

// StoreStateField is where the conversation-state serializer keeps the chat
// history key inside the thread state (document path threadData.storeState).
const StoreStateField = "storeState"

// HistoryKeyFromState extracts the history key from a serialized thread state.
//
// storeState is normally a plain string. A JSON-encoded string, or an object
// carrying "historyKey", is also accepted. This is the only place that reaches
// into the otherwise opaque state.
func HistoryKeyFromState(state []byte) domain.HistoryKey {
	if len(state) == 0 {
		return ""
	}

	r := gjson.GetBytes(state, StoreStateField)
	switch {
	case r.Type == gjson.String:
		inner := gjson.Parse(r.Str)
		switch {
		case inner.Type == gjson.String && gjson.Valid(r.Str):
			return domain.HistoryKey(inner.Str)
		case inner.IsObject():
			return domain.HistoryKey(inner.Get("historyKey").String())
		default:
			return domain.HistoryKey(r.Str)
		}
	case r.IsObject():
		return domain.HistoryKey(r.Get("historyKey").String())
	default:
		return ""
	}
}
