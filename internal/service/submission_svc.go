package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/apperr"
	"github.com/DYArchive/distributed-youtube-tracker/pkg/ytid"
)

// SubmissionService accepts API submissions and applies each one through the
// reconciler in a single transaction.
type SubmissionService struct {
	reconciler *Reconciler
}

func NewSubmissionService(reconciler *Reconciler) *SubmissionService {
	return &SubmissionService{reconciler: reconciler}
}

// SubmitChannels handles a {"channels": [...]} body.
func (s *SubmissionService) SubmitChannels(ctx context.Context, contributorID int64, body []byte) (*model.SubmitResponse, error) {
	batch, absent, err := parseChannels(body)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, batch, absent, model.ModeChannelsOnly, contributorID)
}

// SubmitVideos handles a {"videos": [...]} body.
func (s *SubmissionService) SubmitVideos(ctx context.Context, contributorID int64, body []byte) (*model.SubmitResponse, error) {
	batch, absent, err := parseVideos(body)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, batch, absent, model.ModeVideosAndChannels, contributorID)
}

// submit reports keys absent from the request body as missing. A key sent
// as null or "" counts as supplied.
func (s *SubmissionService) submit(ctx context.Context, batch model.Batch, absent map[string]int, mode model.Mode, contributorID int64) (*model.SubmitResponse, error) {
	counts, err := s.reconciler.ReconcileAtomic(ctx, batch, mode, contributorID)
	if err != nil {
		return nil, err
	}
	counts.MissingFieldCounts = absent
	resp := &model.SubmitResponse{Success: true, Counts: &counts}
	if len(counts.MissingFieldCounts) > 0 {
		resp.Warning = &model.SubmitWarning{MissingFieldCounts: counts.MissingFieldCounts}
	}
	return resp, nil
}

// ParseChannelSubmission decodes and validates a channel submission. Any
// invalid item rejects the whole request.
func ParseChannelSubmission(body []byte) (model.Batch, error) {
	batch, _, err := parseChannels(body)
	return batch, err
}

var (
	channelFields = []string{"title", "note"}
	videoFields   = []string{"title", "channel_id", "channel_title", "filesize", "format_id"}
)

func parseChannels(body []byte) (model.Batch, map[string]int, error) {
	items, err := submissionItems(body, "channels")
	if err != nil {
		return model.Batch{}, nil, err
	}

	batch := model.Batch{Channels: make([]model.ChannelRecord, 0, len(items))}
	for i, item := range items {
		id, err := requiredID(item, i, "channel")
		if err != nil {
			return model.Batch{}, nil, err
		}
		cid, err := ytid.Channel(id)
		if err != nil {
			return model.Batch{}, nil, apperr.InvalidIdentifier(fmt.Sprintf("invalid channel id %q", id))
		}

		rec := model.ChannelRecord{ID: string(cid)}
		if rec.Title, err = optionalString(item, "title", i); err != nil {
			return model.Batch{}, nil, err
		}
		if rec.Note, err = optionalString(item, "note", i); err != nil {
			return model.Batch{}, nil, err
		}
		batch.Channels = append(batch.Channels, rec)
	}
	return batch, absentFieldCounts(items, channelFields), nil
}

// ParseVideoSubmission decodes and validates a video submission. filesize
// may be an integer, a digit string, or null.
func ParseVideoSubmission(body []byte) (model.Batch, error) {
	batch, _, err := parseVideos(body)
	return batch, err
}

func parseVideos(body []byte) (model.Batch, map[string]int, error) {
	items, err := submissionItems(body, "videos")
	if err != nil {
		return model.Batch{}, nil, err
	}

	batch := model.Batch{Videos: make([]model.VideoRecord, 0, len(items))}
	for i, item := range items {
		id, err := requiredID(item, i, "video")
		if err != nil {
			return model.Batch{}, nil, err
		}
		vid, err := ytid.Video(id)
		if err != nil {
			return model.Batch{}, nil, apperr.InvalidIdentifier(fmt.Sprintf("invalid video id %q", id))
		}

		rec := model.VideoRecord{ID: string(vid)}
		if rec.ChannelID, err = optionalString(item, "channel_id", i); err != nil {
			return model.Batch{}, nil, err
		}
		if rec.ChannelID != nil {
			cid, err := ytid.Channel(*rec.ChannelID)
			if err != nil {
				return model.Batch{}, nil, apperr.InvalidIdentifier(fmt.Sprintf("invalid channel id %q", *rec.ChannelID))
			}
			canonical := string(cid)
			rec.ChannelID = &canonical
		}
		if rec.Title, err = optionalString(item, "title", i); err != nil {
			return model.Batch{}, nil, err
		}
		if rec.ChannelTitle, err = optionalString(item, "channel_title", i); err != nil {
			return model.Batch{}, nil, err
		}
		if rec.Format, err = optionalString(item, "format_id", i); err != nil {
			return model.Batch{}, nil, err
		}
		if rec.Filesize, err = optionalFilesize(item, i); err != nil {
			return model.Batch{}, nil, err
		}
		batch.Videos = append(batch.Videos, rec)
	}
	return batch, absentFieldCounts(items, videoFields), nil
}

// submissionItems checks that the body is an object whose only key is key
// and whose value is an array of at most MaxSubmissionItems objects.
func submissionItems(body []byte, key string) ([]map[string]json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, apperr.MalformedPayload("malformed body")
	}
	raw, ok := top[key]
	if !ok || len(top) != 1 {
		return nil, apperr.MalformedPayload(fmt.Sprintf("missing `%s` key or invalid keys present", key))
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, apperr.MalformedPayload(fmt.Sprintf("`%s` must be an array of objects", key))
	}
	if len(items) > model.MaxSubmissionItems {
		return nil, apperr.MalformedPayload(fmt.Sprintf("maximum of %d %s per api call", model.MaxSubmissionItems, key))
	}
	return items, nil
}

// absentFieldCounts counts, per optional field, the items that omit the key.
// Zero counts are left out; nil means every key was present.
func absentFieldCounts(items []map[string]json.RawMessage, fields []string) map[string]int {
	var counts map[string]int
	for _, item := range items {
		for _, f := range fields {
			if _, ok := item[f]; ok {
				continue
			}
			if counts == nil {
				counts = make(map[string]int)
			}
			counts[f]++
		}
	}
	return counts
}

func requiredID(item map[string]json.RawMessage, pos int, kind string) (string, error) {
	id, err := optionalString(item, "id", pos)
	if err != nil {
		return "", err
	}
	if id == nil {
		return "", apperr.MalformedPayload(fmt.Sprintf("%s at position `%d` is missing `id` key", kind, pos))
	}
	return *id, nil
}

// optionalString returns nil for an absent, null or empty field.
func optionalString(item map[string]json.RawMessage, field string, pos int) (*string, error) {
	raw, ok := item[field]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, apperr.MalformedPayload(fmt.Sprintf("`%s` at position `%d` must be a string", field, pos))
	}
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

// optionalFilesize accepts an integer or a digit string. Zero means unknown.
func optionalFilesize(item map[string]json.RawMessage, pos int) (*int64, error) {
	raw, ok := item["filesize"]
	if !ok || isNull(raw) {
		return nil, nil
	}
	bad := apperr.MalformedPayload(fmt.Sprintf("filesize at position `%d` should be int, digit str, or null", pos))

	var n int64
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, bad
		}
		if s == "" {
			return nil, nil
		}
		if strings.TrimLeft(s, "0123456789") != "" {
			return nil, bad
		}
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, bad
		}
		n = parsed
	} else if err := json.Unmarshal(raw, &n); err != nil || n < 0 {
		return nil, bad
	}

	if n == 0 {
		return nil, nil
	}
	return &n, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
