package registry

import "encoding/json"

// MarshalJSON writes the token->ID mapping, the direction the query path
// looks words up in.
func (w *WordIDs) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.ids)
}

func (w *WordIDs) UnmarshalJSON(data []byte) error {
	ids := make(map[string]int)
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	w.ids = ids
	return nil
}
