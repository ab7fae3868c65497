// Package qrinfo turns a scanned payload into a read-only preview.
package qrinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/promoredeem/internal/catalog"
	"github.com/angelmondragon/promoredeem/internal/redemption"
	pkgerrors "github.com/angelmondragon/promoredeem/pkg/errors"
)

// payloadKeys are tried in order when the scanned payload is a JSON object.
var payloadKeys = []string{"code", "Code", "raw"}

// Info is the preview plus the campaign details shown next to it.
type Info struct {
	redemption.Preview
	CampaignDescription string     `json:"campaign_description,omitempty"`
	CampaignStartDate   *time.Time `json:"campaign_start_date,omitempty"`
	CampaignEndDate     *time.Time `json:"campaign_end_date,omitempty"`
}

type Resolver interface {
	Resolve(ctx context.Context, raw string) (Info, error)
}

type validator interface {
	Validate(ctx context.Context, code string) (redemption.Preview, error)
}

type resolver struct {
	engine  validator
	catalog catalog.Repository
}

func NewResolver(engine validator, catalogRepo catalog.Repository) (Resolver, error) {
	if engine == nil {
		return nil, fmt.Errorf("redemption engine required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &resolver{engine: engine, catalog: catalogRepo}, nil
}

func (r *resolver) Resolve(ctx context.Context, raw string) (Info, error) {
	code := ExtractCode(raw)
	if code == "" {
		return Info{}, pkgerrors.New(pkgerrors.CodeValidation, "scanned payload is empty")
	}

	preview, err := r.engine.Validate(ctx, code)
	if err != nil {
		return Info{}, err
	}

	info := Info{Preview: preview}
	campaign, err := r.catalog.GetCampaign(ctx, preview.CampaignID)
	if err != nil {
		return Info{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load campaign details")
	}
	if campaign != nil {
		if campaign.Description != nil {
			info.CampaignDescription = *campaign.Description
		}
		start, end := campaign.StartDate, campaign.EndDate
		info.CampaignStartDate = &start
		info.CampaignEndDate = &end
	}
	return info, nil
}

// ExtractCode pulls the code out of a scanned payload. JSON objects are
// searched for a non-blank string under code, Code, then raw; anything else
// is treated as the code itself.
func ExtractCode(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return trimmed
	}
	for _, key := range payloadKeys {
		if value, ok := fields[key].(string); ok {
			if code := strings.TrimSpace(value); code != "" {
				return code
			}
		}
	}
	return trimmed
}
