// Package models defines the liveness detection domain: challenge test types,
// detection profiles, verdicts and attack classifications.
package models

import (
	"time"

	"biogate/pkg/domain"
	dErrors "biogate/pkg/domain-errors"
)

// TestType identifies one liveness challenge.
type TestType string

const (
	TestBlinkDetection     TestType = "blink_detection"
	TestHeadMovement       TestType = "head_movement"
	TestMouthMovement      TestType = "mouth_movement"
	TestEyeTracking        TestType = "eye_tracking"
	TestFacialExpression   TestType = "facial_expression"
	TestChallengeResponse  TestType = "challenge_response"
	TestInfraredDetection  TestType = "infrared_detection"
	TestDepthAnalysis      TestType = "depth_analysis"
	TestTextureAnalysis    TestType = "texture_analysis"
	TestReflectionAnalysis TestType = "reflection_analysis"
)

var validTestTypes = map[TestType]struct{}{
	TestBlinkDetection:     {},
	TestHeadMovement:       {},
	TestMouthMovement:      {},
	TestEyeTracking:        {},
	TestFacialExpression:   {},
	TestChallengeResponse:  {},
	TestInfraredDetection:  {},
	TestDepthAnalysis:      {},
	TestTextureAnalysis:    {},
	TestReflectionAnalysis: {},
}

// IsValid checks if the test type is one of the supported enum values.
func (t TestType) IsValid() bool {
	_, ok := validTestTypes[t]
	return ok
}

// String returns the string representation.
func (t TestType) String() string {
	return string(t)
}

// ParseTestType converts a string into a TestType.
func ParseTestType(s string) (TestType, error) {
	t := TestType(s)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown liveness test type: %q", s)
	}
	return t, nil
}

// Verdict is the outcome of a check or a single test.
type Verdict string

const (
	VerdictPass         Verdict = "pass"
	VerdictFail         Verdict = "fail"
	VerdictInconclusive Verdict = "inconclusive"
	VerdictError        Verdict = "error"
	VerdictTimeout      Verdict = "timeout"
)

// String returns the string representation.
func (v Verdict) String() string {
	return string(v)
}

// AttackType classifies a detected presentation attack.
type AttackType string

const (
	AttackPhoto        AttackType = "photo_attack"
	AttackVideo        AttackType = "video_attack"
	AttackMask         AttackType = "mask_attack"
	AttackScreenReplay AttackType = "screen_replay"
	AttackPrintedPhoto AttackType = "printed_photo"
	AttackMask3D       AttackType = "mask_3d"
	AttackMakeup       AttackType = "makeup_attack"
	AttackGelatinMask  AttackType = "gelatin_mask"
)

// String returns the string representation.
func (a AttackType) String() string {
	return string(a)
}

// Per-test fallbacks when a profile does not pin a value.
const (
	DefaultTestThreshold = 0.7
	DefaultTestTimeout   = 3 * time.Second
)

// DetectionConfig is a named detection profile: which tests run, their pass
// thresholds and time budgets, and the capture requirements.
type DetectionConfig struct {
	Profile        string
	Tests          []TestType
	Thresholds     map[TestType]float64
	Timeouts       map[TestType]time.Duration
	Formats        []string
	RequiredFrames int
	MinQuality     float64
}

// FormatSupported reports whether the profile can decode the given capture
// format.
func (c DetectionConfig) FormatSupported(format string) bool {
	for _, f := range c.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Threshold returns the pass threshold for a test, falling back to the
// per-test default when the profile does not pin one.
func (c DetectionConfig) Threshold(test TestType) float64 {
	if v, ok := c.Thresholds[test]; ok {
		return v
	}
	return DefaultTestThreshold
}

// Timeout returns the time budget for a test, falling back to the per-test
// default when the profile does not pin one.
func (c DetectionConfig) Timeout(test TestType) time.Duration {
	if v, ok := c.Timeouts[test]; ok {
		return v
	}
	return DefaultTestTimeout
}

// StandardConfig is the profile for security levels below the high-security
// cutoff.
func StandardConfig() DetectionConfig {
	return DetectionConfig{
		Profile: "standard",
		Tests: []TestType{
			TestBlinkDetection,
			TestHeadMovement,
			TestMouthMovement,
			TestTextureAnalysis,
			TestReflectionAnalysis,
		},
		Thresholds: map[TestType]float64{
			TestBlinkDetection:     0.70,
			TestHeadMovement:       0.65,
			TestMouthMovement:      0.60,
			TestTextureAnalysis:    0.80,
			TestReflectionAnalysis: 0.75,
		},
		Timeouts: map[TestType]time.Duration{
			TestBlinkDetection:  3 * time.Second,
			TestHeadMovement:    5 * time.Second,
			TestMouthMovement:   3 * time.Second,
			TestTextureAnalysis: 2 * time.Second,
		},
		Formats:        []string{"jpeg", "png", "bmp"},
		RequiredFrames: 5,
		MinQuality:     0.6,
	}
}

// HighSecurityConfig is the profile for security levels at or above the
// high-security cutoff. It adds hardware-assisted tests and tightens every
// threshold.
func HighSecurityConfig() DetectionConfig {
	return DetectionConfig{
		Profile: "high_security",
		Tests: []TestType{
			TestBlinkDetection,
			TestHeadMovement,
			TestMouthMovement,
			TestEyeTracking,
			TestDepthAnalysis,
			TestInfraredDetection,
		},
		Thresholds: map[TestType]float64{
			TestBlinkDetection:    0.85,
			TestHeadMovement:      0.80,
			TestMouthMovement:     0.75,
			TestEyeTracking:       0.70,
			TestDepthAnalysis:     0.80,
			TestInfraredDetection: 0.90,
		},
		Timeouts: map[TestType]time.Duration{
			TestBlinkDetection: 5 * time.Second,
			TestHeadMovement:   8 * time.Second,
			TestEyeTracking:    10 * time.Second,
		},
		Formats:        []string{"jpeg", "png", "bmp", "tiff"},
		RequiredFrames: 10,
		MinQuality:     0.8,
	}
}

// CheckRequest asks for a liveness verdict on one capture. SecurityLevel in
// [0,1] selects the detection profile; Tests, when non-empty, overrides the
// profile's test list.
type CheckRequest struct {
	SubjectID     *domain.SubjectID `json:"subject_id,omitempty"`
	Capture       domain.Capture    `json:"capture"`
	SecurityLevel float64           `json:"security_level"`
	Tests         []TestType        `json:"tests,omitempty"`
}

// Validate rejects structurally broken check requests.
func (r CheckRequest) Validate() error {
	if err := r.Capture.Validate(); err != nil {
		return err
	}
	if r.Capture.Modality != domain.ModalityFace && r.Capture.Modality != domain.ModalityFace3D {
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"liveness detection requires a face capture, got %s", r.Capture.Modality)
	}
	if r.SecurityLevel < 0 || r.SecurityLevel > 1 {
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"security_level must be within [0,1], got %v", r.SecurityLevel)
	}
	for _, t := range r.Tests {
		if !t.IsValid() {
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown liveness test type: %q", t)
		}
	}
	return nil
}

// TestResult is the outcome of one challenge test.
type TestResult struct {
	Test       TestType       `json:"test"`
	Verdict    Verdict        `json:"verdict"`
	Confidence float64        `json:"confidence"`
	Quality    float64        `json:"quality"`
	Threshold  float64        `json:"threshold"`
	Details    map[string]any `json:"details,omitempty"`
	Duration   time.Duration  `json:"duration"`
	Error      string         `json:"error,omitempty"`
}

// CheckResult is the aggregated liveness verdict for one capture.
type CheckResult struct {
	SessionID       string        `json:"session_id"`
	Verdict         Verdict       `json:"verdict"`
	OverallScore    float64       `json:"overall_score"`
	Profile         string        `json:"profile"`
	TestResults     []TestResult  `json:"test_results"`
	DetectedAttacks []AttackType  `json:"detected_attacks,omitempty"`
	Warnings        []string      `json:"warnings,omitempty"`
	EvaluatedAt     time.Time     `json:"evaluated_at"`
	Duration        time.Duration `json:"duration"`
}

// IsLive reports whether the capture passed the liveness gate.
func (r CheckResult) IsLive() bool {
	return r.Verdict == VerdictPass
}

// SessionState tracks one check through its pipeline stages.
type SessionState string

const (
	SessionCreated     SessionState = "created"
	SessionValidating  SessionState = "validating"
	SessionRunning     SessionState = "running"
	SessionAggregating SessionState = "aggregating"
	SessionDone        SessionState = "done"
)

var sessionOrder = map[SessionState]SessionState{
	SessionCreated:     SessionValidating,
	SessionValidating:  SessionRunning,
	SessionRunning:     SessionAggregating,
	SessionAggregating: SessionDone,
}

// CanTransition reports whether next is the legal successor of s. Done is
// terminal; any stage may also jump straight to Done when the check aborts.
func (s SessionState) CanTransition(next SessionState) bool {
	if s == SessionDone {
		return false
	}
	if next == SessionDone {
		return true
	}
	return sessionOrder[s] == next
}

// Session is one in-flight check. States advance strictly forward.
type Session struct {
	ID        string
	State     SessionState
	Config    DetectionConfig
	StartedAt time.Time
}

// NewSession creates a session in the Created state.
func NewSession(id string, now time.Time) *Session {
	return &Session{ID: id, State: SessionCreated, StartedAt: now}
}

// Advance moves the session to the next state, returning CodeInvalidState
// wrapped as an internal error when the transition is illegal.
func (s *Session) Advance(next SessionState) error {
	if !s.State.CanTransition(next) {
		return dErrors.Newf(dErrors.CodeInternal, "illegal session transition %s -> %s", s.State, next)
	}
	s.State = next
	return nil
}
