package upload

// Descriptor is one upload as handed over by the upload pipeline. Error is
// set to a human-readable message when the upload must be refused; the
// caller aborts the upload when it is non-empty.
type Descriptor struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	TmpPath string `json:"-"`
	Size    int64  `json:"size,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Dimensions are the bounding pixel dimensions read from an image header.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Pixels returns Width×Height without overflowing on 32-bit platforms.
func (d Dimensions) Pixels() int64 {
	return int64(d.Width) * int64(d.Height)
}

// Reason identifies which rule refused an upload.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNameTooShort
	ReasonMultipleDots
	ReasonBlacklisted
	ReasonFaultyImage
	ReasonTooLarge
	ReasonTooSmall
)

var reasonNames = map[Reason]string{
	ReasonNone:         "none",
	ReasonNameTooShort: "name_too_short",
	ReasonMultipleDots: "multiple_dots",
	ReasonBlacklisted:  "blacklisted",
	ReasonFaultyImage:  "faulty_image",
	ReasonTooLarge:     "too_large",
	ReasonTooSmall:     "too_small",
}

func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return "unknown"
}

// Messages shown to the uploading user, one per Reason.
const (
	MessageNameTooShort = "Please rename the image to a descriptive name before uploading to make it possible to be recognized only by its name."
	MessageMultipleDots = "Please remove multiple dots from the file name before uploading."
	MessageBlacklisted  = "Please rename the image to a descriptive name before uploading, start with a letter or a digit and exclude its dimensions."
	MessageFaultyImage  = "This is a faulty image. Please regenerate it if it is not the original image."
	MessageTooLarge     = "Please resize the image before uploading at most to FullHD (1920×1080)"
	MessageTooSmall     = "Please upload images with at least 32 pixels in both dimensions."
)

var reasonMessages = map[Reason]string{
	ReasonNameTooShort: MessageNameTooShort,
	ReasonMultipleDots: MessageMultipleDots,
	ReasonBlacklisted:  MessageBlacklisted,
	ReasonFaultyImage:  MessageFaultyImage,
	ReasonTooLarge:     MessageTooLarge,
	ReasonTooSmall:     MessageTooSmall,
}

// Message returns the user-facing text for r.
func (r Reason) Message() string {
	return reasonMessages[r]
}

// Verdict is the outcome of Decide: either approved with a normalized name
// or rejected with a reason.
type Verdict struct {
	Approved bool
	Name     string
	Reason   Reason
}

// Approved returns an approving verdict carrying the normalized name.
func Approved(name string) Verdict {
	return Verdict{Approved: true, Name: name}
}

// Rejected returns a refusing verdict.
func Rejected(reason Reason) Verdict {
	return Verdict{Reason: reason}
}

// Message is empty for approved verdicts.
func (v Verdict) Message() string {
	if v.Approved {
		return ""
	}
	return v.Reason.Message()
}
