package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vogiaan1904/voyage-sync/config"
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/querycache"
	"github.com/vogiaan1904/voyage-sync/internal/source"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
)

var ErrUnexpectedStatus = errors.New("unexpected upstream status")

const (
	EventsPath         = "/events"
	OpenLFGsPath       = "/fez/open"
	JoinedLFGsPath     = "/fez/joined"
	PersonalEventsPath = "/personalevents"

	maxBodyBytes = 8 << 20
)

// Seamail conversations share the fez endpoints and are excluded from every
// LFG query.
var lfgExcludeTypes = []models.FezType{models.FezTypeClosed, models.FezTypeOpen}

type ScheduleRepository interface {
	Events() source.PageFetcher
	JoinedLFGs() source.PageFetcher
	OpenLFGs() source.PageFetcher
	PersonalEvents() source.PageFetcher
}

type scheduleRepository struct {
	baseURL string
	token   string
	http    *http.Client
	cache   querycache.Client
	l       logger.Logger
}

func NewScheduleRepository(cfg config.APIConfig, cache querycache.Client, l logger.Logger) ScheduleRepository {
	return &scheduleRepository{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   cache,
		l:       l,
	}
}

type fetcherFunc func(ctx context.Context, cruiseDay int, params models.PageParams) (source.Page, error)

func (f fetcherFunc) FetchPage(ctx context.Context, cruiseDay int, params models.PageParams) (source.Page, error) {
	return f(ctx, cruiseDay, params)
}

func (r *scheduleRepository) Events() source.PageFetcher {
	return fetcherFunc(func(ctx context.Context, day int, _ models.PageParams) (source.Page, error) {
		q := url.Values{"cruiseday": {strconv.Itoa(day)}}

		var events []eventData
		if err := r.get(ctx, EventsPath, q, &events); err != nil {
			return source.Page{}, err
		}

		items := make([]models.ScheduleEntry, 0, len(events))
		for _, e := range events {
			items = append(items, e.toEntry())
		}
		return singlePage(items), nil
	})
}

func (r *scheduleRepository) JoinedLFGs() source.PageFetcher {
	return r.fezFetcher(JoinedLFGsPath, models.EntryKindJoinedActivity)
}

func (r *scheduleRepository) OpenLFGs() source.PageFetcher {
	return r.fezFetcher(OpenLFGsPath, models.EntryKindOpenActivity)
}

func (r *scheduleRepository) PersonalEvents() source.PageFetcher {
	return fetcherFunc(func(ctx context.Context, day int, _ models.PageParams) (source.Page, error) {
		q := url.Values{"cruiseday": {strconv.Itoa(day)}}

		var events []personalEventData
		if err := r.get(ctx, PersonalEventsPath, q, &events); err != nil {
			return source.Page{}, err
		}

		items := make([]models.ScheduleEntry, 0, len(events))
		for _, e := range events {
			items = append(items, e.toEntry())
		}
		return singlePage(items), nil
	})
}

func (r *scheduleRepository) fezFetcher(path string, kind models.EntryKind) source.PageFetcher {
	return fetcherFunc(func(ctx context.Context, day int, params models.PageParams) (source.Page, error) {
		q := url.Values{
			"cruiseday": {strconv.Itoa(day)},
			"start":     {strconv.Itoa(params.Start)},
		}
		if params.Limit > 0 {
			q.Set("limit", strconv.Itoa(params.Limit))
		}
		for _, t := range lfgExcludeTypes {
			q.Add("excludetype", string(t))
		}

		var list fezListData
		if err := r.get(ctx, path, q, &list); err != nil {
			return source.Page{}, err
		}

		items := make([]models.ScheduleEntry, 0, len(list.Fezzes))
		for _, f := range list.Fezzes {
			items = append(items, f.toEntry(kind))
		}
		return source.Page{Items: items, Paginator: list.Paginator}, nil
	})
}

// singlePage wraps an unpaginated response.
func singlePage(items []models.ScheduleEntry) source.Page {
	return source.Page{
		Items:     items,
		Paginator: models.Paginator{Start: 0, Limit: len(items), Total: len(items)},
	}
}

// get serves path?query through the query cache. The cache key is the
// request path with its encoded query, so invalidating an endpoint path
// covers every cruise day and page of it. A body is only cached once it
// decodes into dst.
func (r *scheduleRepository) get(ctx context.Context, path string, query url.Values, dst any) error {
	key := models.CacheKey(path + "?" + query.Encode())

	decoded := false
	body, err := r.cache.Fetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		body, err := r.do(ctx, path, query)
		if err != nil {
			return nil, err
		}
		if err := r.decode(ctx, key, body, dst); err != nil {
			return nil, err
		}
		decoded = true
		return body, nil
	})
	if err != nil {
		return err
	}
	if decoded {
		return nil
	}
	return r.decode(ctx, key, body, dst)
}

func (r *scheduleRepository) decode(ctx context.Context, key models.CacheKey, body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		r.l.Errorf(ctx, "api.scheduleRepository.decode: %s: %v", key, err)
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *scheduleRepository) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := r.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	r.l.Debugf(ctx, "api.scheduleRepository.do: GET %s -> %d in %s", path, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: %d", ErrUnexpectedStatus, path, resp.StatusCode)
	}
	return body, nil
}
