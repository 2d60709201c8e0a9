package recall

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/draker2nich/SwipeTime-sub001/core"
)

// StorePreferenceSource 从 core.Store 读取偏好记录，key 为 {KeyPrefix}:{userID}。
type StorePreferenceSource struct {
	store     core.Store
	KeyPrefix string
}

// NewStorePreferenceSource 创建偏好源，keyPrefix 为空时使用 "prefs"。
func NewStorePreferenceSource(s core.Store, keyPrefix string) *StorePreferenceSource {
	if keyPrefix == "" {
		keyPrefix = "prefs"
	}
	return &StorePreferenceSource{store: s, KeyPrefix: keyPrefix}
}

// GetByUserID 读取偏好记录。用户没有记录时返回 (nil, nil)。
// 这里只解码记录外层；列表字段的解析留给 PreferencesRecord.Decode，损坏时由调用方降级为不过滤。
func (s *StorePreferenceSource) GetByUserID(ctx context.Context, userID string) (*core.PreferencesRecord, error) {
	if userID == "" {
		return nil, nil
	}
	data, err := s.store.Get(ctx, s.KeyPrefix+":"+userID)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("recall: read preferences of %s: %w", userID, err)
	}
	var rec core.PreferencesRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("recall: decode preferences of %s: %w: %v", userID, core.ErrPreferencesMalformed, err)
	}
	if rec.UserID == "" {
		rec.UserID = userID
	}
	return &rec, nil
}

// Save 写入偏好记录。
func (s *StorePreferenceSource) Save(ctx context.Context, rec *core.PreferencesRecord) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("recall: save preferences: %w", core.ErrInvalidArgument)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, s.KeyPrefix+":"+rec.UserID, data)
}

var _ core.PreferenceSource = (*StorePreferenceSource)(nil)
