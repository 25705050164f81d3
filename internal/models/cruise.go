package models

import "time"

// CruiseDay is a 1-based day of the voyage. Day 1 is embarkation day.
type CruiseDay struct {
	Ordinal int       `json:"ordinal"`
	Date    time.Time `json:"date"`
}

// Paginator mirrors the server's paging envelope.
type Paginator struct {
	Start int `json:"start"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

type PageParams struct {
	Start int `json:"start"`
	Limit int `json:"limit"`
}

// Next returns the params of the following page, if any.
func (p Paginator) Next() (PageParams, bool) {
	if p.Limit <= 0 {
		return PageParams{}, false
	}
	next := p.Start + p.Limit
	if next < p.Total {
		return PageParams{Start: next, Limit: p.Limit}, true
	}
	return PageParams{}, false
}

// Previous returns the params of the preceding page, if any.
func (p Paginator) Previous() (PageParams, bool) {
	if p.Limit <= 0 {
		return PageParams{}, false
	}
	prev := p.Start - p.Limit
	if prev >= 0 {
		return PageParams{Start: prev, Limit: p.Limit}, true
	}
	return PageParams{}, false
}
