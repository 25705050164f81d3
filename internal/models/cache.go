package models

import (
	"slices"
	"strings"
)

// CacheKey is an opaque query key built from an endpoint path and an
// optional subject. Invalidating a key also invalidates every key it prefixes.
type CacheKey string

const (
	NotificationSummaryKey CacheKey = "/notification/global"
	AnnouncementsKey       CacheKey = "/notification/announcements"
	ConversationListKey    CacheKey = "/fez/joined"
)

func ConversationDetailKey(fezID string) CacheKey {
	return CacheKey("/fez/" + fezID)
}

func ConversationMembershipKey(fezID string) CacheKey {
	return CacheKey("/fez/" + fezID + "/members")
}

// Covers reports whether invalidating k also invalidates other. A key covers
// itself and any key that extends it at a path or query boundary.
func (k CacheKey) Covers(other CacheKey) bool {
	if k == other {
		return true
	}
	if !strings.HasPrefix(string(other), string(k)) {
		return false
	}
	switch other[len(k)] {
	case '/', '?', '&':
		return true
	default:
		return false
	}
}

// InvalidationSet is a deduplicated set of cache keys.
type InvalidationSet struct {
	keys map[CacheKey]struct{}
}

func NewInvalidationSet(keys ...CacheKey) InvalidationSet {
	s := InvalidationSet{keys: make(map[CacheKey]struct{}, len(keys))}
	s.Add(keys...)
	return s
}

func (s *InvalidationSet) Add(keys ...CacheKey) {
	if s.keys == nil {
		s.keys = make(map[CacheKey]struct{}, len(keys))
	}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
}

func (s InvalidationSet) Contains(k CacheKey) bool {
	_, ok := s.keys[k]
	return ok
}

func (s InvalidationSet) Len() int {
	return len(s.keys)
}

// Keys returns the keys in sorted order.
func (s InvalidationSet) Keys() []CacheKey {
	out := make([]CacheKey, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (s InvalidationSet) Strings() []string {
	keys := s.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
