package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	overlay "github.com/goliatone/go-overlay"
)

func TestDecoderFromFixtures(t *testing.T) {
	fx := loadFixture(t, "hydrate_notifications.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			options := buildOptions(tc)
			decoder := NewDecoder[notificationSettings](options...)

			ctx := Context{
				Slug:  tc.Slug,
				Scope: tc.Scope,
			}

			result, err := decoder.Decode(ctx, tc.Input)

			if tc.ExpectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.ExpectErr)
				}
				if !strings.Contains(err.Error(), tc.ExpectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.ExpectErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}

			if got := result.Value(); !reflect.DeepEqual(tc.Expect, got) {
				t.Fatalf("decoded value mismatch:\nwant: %#v\n got: %#v", tc.Expect, got)
			}
			if got := result.ExplicitPaths(); !reflect.DeepEqual(tc.ExpectExplicit, got) {
				t.Fatalf("expected explicit paths %v, got %v", tc.ExpectExplicit, got)
			}
		})
	}
}

func TestDecoderWithDefaults(t *testing.T) {
	defaults := notificationSettings{
		Limits: limits{Daily: 10, Monthly: 100},
	}
	decoder := NewDecoder(WithDefaults(defaults))

	result, err := decoder.Decode(Context{Slug: "notifications/alerts"}, map[string]any{
		"limits": map[string]any{"monthly": 50},
	})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	got := result.Value().Limits
	if got.Daily != 10 || got.Monthly != 50 {
		t.Fatalf("expected defaults merged with payload, got %+v", got)
	}
	daily, explicit, err := overlay.Get[int](result, "limits.daily")
	if err != nil {
		t.Fatalf("lookup limits.daily: %v", err)
	}
	if daily != 10 || explicit {
		t.Fatalf("expected implicit default 10, got %d explicit=%v", daily, explicit)
	}
}

func TestDecoderDecodeBytesStripsComments(t *testing.T) {
	decoder := NewDecoder[notificationSettings]()
	document := []byte(`{
		// turned on by ops
		"enabled": true,
		"tags": ["ops",],
	}`)

	result, err := decoder.DecodeBytes(Context{Slug: "notifications/ops"}, document)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	value := result.Value()
	if !value.Enabled || !reflect.DeepEqual(value.Tags, []string{"ops"}) {
		t.Fatalf("expected enabled with ops tag, got %+v", value)
	}
}

func TestDecoderUseNumber(t *testing.T) {
	type envelope struct {
		Extra any `json:"extra"`
	}
	decoder := NewDecoder(WithUseNumber[envelope]())

	result, err := decoder.DecodeBytes(Context{Slug: "envelope"}, []byte(`{"extra": 12345678901234567890}`))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	number, ok := result.Value().Extra.(json.Number)
	if !ok {
		t.Fatalf("expected json.Number, got %T", result.Value().Extra)
	}
	if number.String() != "12345678901234567890" {
		t.Fatalf("expected number preserved, got %s", number)
	}
}

func TestDecoderRejectsNilPayload(t *testing.T) {
	decoder := NewDecoder[notificationSettings]()
	if _, err := decoder.Decode(Context{Slug: "notifications/alerts"}, nil); err == nil {
		t.Fatalf("expected error for nil payload")
	}
}

func buildOptions(tc fixtureCase) []DecoderOption[notificationSettings] {
	options := []DecoderOption[notificationSettings]{}

	for _, optName := range tc.Options {
		switch optName {
		case "use_number":
			options = append(options, WithUseNumber[notificationSettings]())
		case "disallow_unknown":
			options = append(options, WithDisallowUnknownFields[notificationSettings]())
		}
	}

	for _, hookName := range tc.PreHooks {
		switch hookName {
		case "quiet_hours_split":
			options = append(options, WithPreHook[notificationSettings](quietHoursPreHook))
		}
	}

	for _, hookName := range tc.PostHooks {
		switch hookName {
		case "ensure_tag":
			options = append(options, WithPostHook[notificationSettings](ensureTagPostHook))
		}
	}

	if tc.CustomDecoder != "" {
		switch tc.CustomDecoder {
		case "snapshot_string":
			options = append(options, WithCustomDecoder[notificationSettings](snapshotStringDecoder))
		}
	}

	return options
}

func quietHoursPreHook(_ Context, payload map[string]any) (map[string]any, error) {
	value, ok := payload["quietHours"].(string)
	if !ok || value == "" {
		return payload, nil
	}

	parts := strings.Split(value, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid quiet hours payload %q", value)
	}

	payload["quietHours"] = map[string]any{
		"start": strings.TrimSpace(parts[0]),
		"end":   strings.TrimSpace(parts[1]),
	}
	return payload, nil
}

func ensureTagPostHook(ctx Context, settings *overlay.Overlay[notificationSettings]) error {
	if settings == nil {
		return errors.New("overlay is nil")
	}
	tags, err := settings.Lookup("tags")
	if err != nil {
		return err
	}
	if tags.Explicit() {
		return nil
	}
	identifier := slugIdentifier(ctx.Slug)
	tags.Replace(reflect.ValueOf([]string{fmt.Sprintf("%s:%s", ctx.Scope, identifier)}), true)
	return nil
}

func snapshotStringDecoder(ctx Context, payload map[string]any) (*overlay.Overlay[notificationSettings], error) {
	raw, ok := payload["snapshot"].(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("missing snapshot string for slug %q", ctx.Slug)
	}
	return overlay.Decode[notificationSettings]([]byte(raw), overlay.WithDisallowUnknownFields())
}

func slugIdentifier(slug string) string {
	if slug == "" {
		return ""
	}
	parts := strings.Split(slug, "/")
	if len(parts) < 2 {
		return slug
	}
	return parts[1]
}

type fixture struct {
	Description string        `json:"description"`
	Cases       []fixtureCase `json:"cases"`
}

type fixtureCase struct {
	Name           string               `json:"name"`
	Slug           string               `json:"slug"`
	Scope          string               `json:"scope"`
	Input          map[string]any       `json:"input"`
	Expect         notificationSettings `json:"expect"`
	ExpectExplicit []string             `json:"expectExplicit"`
	ExpectErr      string               `json:"expectErr"`
	PreHooks       []string             `json:"preHooks"`
	PostHooks      []string             `json:"postHooks"`
	Options        []string             `json:"options"`
	CustomDecoder  string               `json:"customDecoder"`
}

type notificationSettings struct {
	Enabled    bool            `json:"enabled"`
	QuietHours quietHours      `json:"quietHours"`
	Channels   channelSettings `json:"channels"`
	Limits     limits          `json:"limits"`
	Tags       []string        `json:"tags"`
}

type quietHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type channelSettings struct {
	Email channel `json:"email"`
	Push  channel `json:"push"`
}

type channel struct {
	Enabled   bool   `json:"enabled"`
	Frequency string `json:"frequency"`
	Threshold int    `json:"threshold"`
}

type limits struct {
	Daily   int `json:"daily"`
	Monthly int `json:"monthly"`
}

func loadFixture(t *testing.T, name string) fixture {
	t.Helper()
	path := filepath.Join("testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read hydrate fixture %q: %v", name, err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal hydrate fixture %q: %v", name, err)
	}
	return fx
}
