package upload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var fullHD = Dimensions{Width: 1920, Height: 1080}

func TestDecide(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name   string
		file   string
		dims   Dimensions
		ok     bool
		reason Reason
		want   string
	}{
		{name: "too short", file: "a.jpg", dims: fullHD, ok: true, reason: ReasonNameTooShort},
		{name: "short camera name hits length first", file: "IMG_2048.jpg", dims: fullHD, ok: true, reason: ReasonNameTooShort},
		{name: "short resolution name hits length first", file: "800x600.jpg", dims: fullHD, ok: true, reason: ReasonNameTooShort},
		{name: "double dot", file: "holiday..beach-sunset.jpg", dims: fullHD, ok: true, reason: ReasonMultipleDots},
		{name: "leading symbol", file: "_holiday-beach-sunset.jpg", dims: fullHD, ok: true, reason: ReasonBlacklisted},
		{name: "camera DSC", file: "DSC1234-holiday-beach.jpg", dims: fullHD, ok: true, reason: ReasonBlacklisted},
		{name: "camera DSC with prefix", file: "_DSC1234-holiday-beach.jpg", dims: fullHD, ok: true, reason: ReasonBlacklisted},
		{name: "camera IMG lower case", file: "img_2048_holiday_beach.jpg", dims: fullHD, ok: true, reason: ReasonBlacklisted},
		{name: "camera IMG after one char", file: "xIMG-holiday-beach.jpg", dims: fullHD, ok: true, reason: ReasonBlacklisted},
		{name: "screenshot", file: "Screen Shot 2020.png", dims: fullHD, ok: true, reason: ReasonBlacklisted},
		{name: "screenshot lower case", file: "my-screen-shot-42.png", dims: fullHD, ok: true, reason: ReasonBlacklisted},
		{name: "embedded resolution", file: "banner-800x600-final.jpg", dims: fullHD, ok: true, reason: ReasonBlacklisted},
		{name: "embedded resolution upper X", file: "banner-1920X1080-final.jpg", dims: fullHD, ok: true, reason: ReasonBlacklisted},
		{name: "unreadable", file: "conference-report-cover.png", ok: false, reason: ReasonFaultyImage},
		{name: "too large", file: "conference-report-cover.png", dims: Dimensions{Width: 4000, Height: 3000}, ok: true, reason: ReasonTooLarge},
		{name: "upper bound inclusive", file: "conference-report-cover.png", dims: Dimensions{Width: 2173600, Height: 1}, ok: true, want: "conference-report-cover.png"},
		{name: "just above upper bound", file: "conference-report-cover.png", dims: Dimensions{Width: 2173601, Height: 1}, ok: true, reason: ReasonTooLarge},
		{name: "too small", file: "conference-report-cover.png", dims: Dimensions{Width: 31, Height: 33}, ok: true, reason: ReasonTooSmall},
		{name: "lower bound inclusive", file: "conference-report-cover.png", dims: Dimensions{Width: 32, Height: 32}, ok: true, want: "conference-report-cover.png"},
		{name: "zero area", file: "conference-report-cover.png", dims: Dimensions{}, ok: true, reason: ReasonTooSmall},
		{name: "full hd approved", file: "conference-report-cover.png", dims: fullHD, ok: true, want: "conference-report-cover.png"},
		{name: "underscores normalized", file: "my_cool_photo.jpg", dims: fullHD, ok: true, want: "my-cool-photo.jpg"},
		{name: "leading digit allowed", file: "2024-annual-report.png", dims: fullHD, ok: true, want: "2024-annual-report.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Decide(p, tt.file, tt.dims, tt.ok)
			if tt.want != "" {
				assert.True(t, v.Approved, "expected approval, got %s", v.Reason)
				assert.Equal(t, tt.want, v.Name)
				assert.Empty(t, v.Message())
				return
			}
			assert.False(t, v.Approved)
			assert.Equal(t, tt.reason, v.Reason)
			assert.Equal(t, tt.reason.Message(), v.Message())
		})
	}
}

func TestDecide_Messages(t *testing.T) {
	p := DefaultPolicy()
	assert.Contains(t, Decide(p, "a.jpg", fullHD, true).Message(), "descriptive name")
	assert.Contains(t, Decide(p, "Screen Shot 2020.png", fullHD, true).Message(), "exclude its dimensions")
}

func TestDecide_ShortNamesAlwaysRejected(t *testing.T) {
	p := DefaultPolicy()
	for n := 0; n < p.MinNameLength; n++ {
		name := strings.Repeat("a", n)
		for _, ok := range []bool{true, false} {
			v := Decide(p, name, fullHD, ok)
			assert.Equal(t, ReasonNameTooShort, v.Reason, "len=%d ok=%v", n, ok)
		}
	}
}

func TestDecide_ApprovalIsIdempotent(t *testing.T) {
	p := DefaultPolicy()
	first := Decide(p, "my_cool_photo_of_the_lake.jpg", fullHD, true)
	second := Decide(p, first.Name, fullHD, true)
	assert.True(t, second.Approved)
	assert.Equal(t, first.Name, second.Name)
}

func TestDecide_RejectionKeepsOriginalName(t *testing.T) {
	v := Decide(DefaultPolicy(), "my_cool_photo.jpg", Dimensions{Width: 10, Height: 10}, true)
	assert.False(t, v.Approved)
	assert.Empty(t, v.Name)
}

func TestDecide_NilBlacklist(t *testing.T) {
	p := DefaultPolicy()
	p.Blacklist = nil
	assert.True(t, Decide(p, "Screen Shot 2020.png", fullHD, true).Approved)
}

func TestPolicyFromConfig(t *testing.T) {
	p, err := PolicyFromConfig(configWith(`^draft-`, 100, 1000))
	assert.NoError(t, err)
	assert.Equal(t, int64(100), p.MinPixels)
	assert.Equal(t, int64(1000), p.MaxPixels)
	assert.True(t, p.Blacklist.MatchString("draft-cover-image.png"))
	assert.False(t, p.Blacklist.MatchString("IMG-cover-image.png"))

	_, err = PolicyFromConfig(configWith(`([`, 1, 2))
	assert.Error(t, err)
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "blacklisted", ReasonBlacklisted.String())
	assert.Equal(t, "unknown", Reason(99).String())
	assert.Equal(t, "", Reason(99).Message())
}
