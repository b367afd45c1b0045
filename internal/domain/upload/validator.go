package upload

import (
	"context"
	"regexp"
	"strings"

	"wpguard/internal/domain/eventbus"
	"wpguard/internal/platform/metrics"
	"wpguard/internal/utils"
)

// BlacklistFunc may replace the blacklist for a single upload. It receives
// the configured pattern and returns the one to apply; returning nil
// disables the blacklist for that upload.
type BlacklistFunc func(def *regexp.Regexp, d Descriptor) *regexp.Regexp

// ThresholdFunc may replace the pixel bounds for a single upload.
type ThresholdFunc func(defMin, defMax int64, dims Dimensions, d Descriptor) (min, max int64)

// Options wires the optional collaborators of a Validator.
type Options struct {
	Prober    Prober
	Blacklist BlacklistFunc
	Threshold ThresholdFunc
	Logger    *utils.Logger
	Metrics   metrics.Metrics
	Events    eventbus.Publisher
}

// Validator applies the upload policy to descriptors coming from the upload
// pipeline.
type Validator struct {
	policy    Policy
	prober    Prober
	blacklist BlacklistFunc
	threshold ThresholdFunc
	logger    *utils.Logger
	metrics   metrics.Metrics
	events    eventbus.Publisher
}

// NewValidator 创建上传校验器
func NewValidator(policy Policy, opts Options) *Validator {
	v := &Validator{
		policy:    policy,
		prober:    opts.Prober,
		blacklist: opts.Blacklist,
		threshold: opts.Threshold,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		events:    opts.Events,
	}
	if v.metrics == nil {
		v.metrics = metrics.Noop{}
	}
	if v.events == nil {
		v.events = eventbus.Nop{}
	}
	return v
}

// Policy returns the configured policy.
func (v *Validator) Policy() Policy {
	return v.policy
}

// Examine runs the policy over an image upload. Non-image types, and any
// upload when no prober is configured, pass through untouched. A refused
// upload gets Error set and keeps its name; an approved one has its
// underscores replaced with hyphens.
func (v *Validator) Examine(ctx context.Context, d Descriptor) Descriptor {
	if d.Type == "" || !strings.HasPrefix(d.Type, "image/") || v.prober == nil {
		return d
	}

	dims, format, ok := v.prober.Probe(ctx, d.TmpPath)
	verdict := v.decide(d, dims, ok)

	if !verdict.Approved {
		d.Error = verdict.Message()
		v.metrics.IncUploadExamined("rejected", verdict.Reason.String())
		v.events.Publish(eventbus.EventUploadRejected, eventbus.UploadEventData{
			Name:    d.Name,
			Type:    d.Type,
			Reason:  verdict.Reason.String(),
			Message: d.Error,
		})
		if v.logger != nil {
			v.logger.InfoTag("Upload", "拒绝上传 %q: reason=%s dims=%dx%d format=%s", d.Name, verdict.Reason, dims.Width, dims.Height, format)
		}
		return d
	}

	if v.logger != nil && verdict.Name != d.Name {
		v.logger.DebugTag("Upload", "文件名规范化 %q -> %q", d.Name, verdict.Name)
	}
	d.Name = verdict.Name
	v.metrics.IncUploadExamined("approved", ReasonNone.String())
	v.events.Publish(eventbus.EventUploadApproved, eventbus.UploadEventData{Name: d.Name, Type: d.Type})
	return d
}

// decide resolves the per-upload overrides and delegates to Decide.
func (v *Validator) decide(d Descriptor, dims Dimensions, ok bool) Verdict {
	p := v.policy
	if v.blacklist != nil {
		p.Blacklist = v.blacklist(p.Blacklist, d)
	}
	if v.threshold != nil {
		p.MinPixels, p.MaxPixels = v.threshold(p.MinPixels, p.MaxPixels, dims, d)
	}
	return Decide(p, d.Name, dims, ok)
}
