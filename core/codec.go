package core

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// entityEnvelope 是实体在 KV 存储中的编码形态：variant 决定 payload 的具体类型。
type entityEnvelope struct {
	Variant Variant         `json:"variant"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalEntity 把实体编码为带类型标记的 JSON。
func MarshalEntity(e Entity) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("marshal entity: %w", ErrInvalidArgument)
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal entity %s: %w", e.Base().ID, err)
	}
	return json.Marshal(entityEnvelope{Variant: e.Variant(), Payload: payload})
}

// UnmarshalEntity 解码 MarshalEntity 的输出。未知 variant 解码为 *Other。
func UnmarshalEntity(data []byte) (Entity, error) {
	var env entityEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal entity envelope: %w", err)
	}

	var e Entity
	switch env.Variant {
	case VariantMovie:
		e = &Movie{}
	case VariantTVShow:
		e = &TVShow{}
	case VariantGame:
		e = &Game{}
	case VariantBook:
		e = &Book{}
	case VariantAnime:
		e = &Anime{}
	default:
		other := &Other{}
		if err := json.Unmarshal(env.Payload, other); err != nil {
			return nil, fmt.Errorf("unmarshal %s entity: %w", env.Variant, err)
		}
		other.Kind = string(env.Variant)
		return other, nil
	}

	if err := json.Unmarshal(env.Payload, e); err != nil {
		return nil, fmt.Errorf("unmarshal %s entity: %w", env.Variant, err)
	}
	return e, nil
}

// MarshalEntities 编码实体列表（JSON 数组）。
func MarshalEntities(entities []Entity) ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(entities))
	for _, e := range entities {
		if e == nil {
			continue
		}
		data, err := MarshalEntity(e)
		if err != nil {
			return nil, err
		}
		raws = append(raws, data)
	}
	return json.Marshal(raws)
}

// UnmarshalEntities 解码 MarshalEntities 的输出；单个元素解码失败时返回错误。
func UnmarshalEntities(data []byte) ([]Entity, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("unmarshal entity list: %w", err)
	}
	out := make([]Entity, 0, len(raws))
	for _, raw := range raws {
		e, err := UnmarshalEntity(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
