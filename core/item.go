package core

// Item 是推荐链路输出给展示层的条目：实体的扁平化、只读投影。
// 投影会丢弃类型专有字段，只保留展示所需的通用字段。
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Category    string `json:"category"`
}

// Project 将实体投影为 Item；nil 实体返回 false。
func Project(e Entity) (Item, bool) {
	if e == nil {
		return Item{}, false
	}
	c := e.Base()
	if c == nil {
		return Item{}, false
	}
	return Item{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		ImageURL:    c.ImageURL,
		Category:    c.Category,
	}, true
}

// ProjectAll 按输入顺序投影实体列表，跳过 nil。
func ProjectAll(entities []Entity) []Item {
	out := make([]Item, 0, len(entities))
	for _, e := range entities {
		if it, ok := Project(e); ok {
			out = append(out, it)
		}
	}
	return out
}

// IndexByID 建立 id -> 实体 的索引，重复 id 保留首个。
func IndexByID(entities []Entity) map[string]Entity {
	m := make(map[string]Entity, len(entities))
	for _, e := range entities {
		if e == nil || e.Base() == nil {
			continue
		}
		id := e.Base().ID
		if _, ok := m[id]; ok {
			continue
		}
		m[id] = e
	}
	return m
}

// ItemIDs 返回 items 的 id 顺序。
func ItemIDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
