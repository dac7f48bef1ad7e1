package ocflstore

import "encoding/json"

func marshalForCache(inv *inventory) ([]byte, error) {
	return json.Marshal(inv)
}

func unmarshalCached(raw []byte) (*inventory, error) {
	var inv inventory
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}
