package radio

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Reason is the disconnect reason code reported with a station
// disassociation. Codes below 200 are IEEE 802.11 reason codes; codes from 200
// up are reported by the station firmware itself.
type Reason uint16

const (
	ReasonUnspecified              Reason = 1
	ReasonAuthExpire               Reason = 2
	ReasonAuthLeave                Reason = 3
	ReasonAssocExpire              Reason = 4
	ReasonAssocTooMany             Reason = 5
	ReasonNotAuthed                Reason = 6
	ReasonNotAssoced               Reason = 7
	ReasonAssocLeave               Reason = 8
	ReasonAssocNotAuthed           Reason = 9
	ReasonDisassocPwrcapBad        Reason = 10
	ReasonDisassocSupchanBad       Reason = 11
	ReasonBSSTransitionDisassoc    Reason = 12
	ReasonIEInvalid                Reason = 13
	ReasonMICFailure               Reason = 14
	Reason4WayHandshakeTimeout     Reason = 15
	ReasonGroupKeyUpdateTimeout    Reason = 16
	ReasonIEIn4WayDiffers          Reason = 17
	ReasonGroupCipherInvalid       Reason = 18
	ReasonPairwiseCipherInvalid    Reason = 19
	ReasonAKMPInvalid              Reason = 20
	ReasonUnsuppRSNIEVersion       Reason = 21
	ReasonInvalidRSNIECap          Reason = 22
	Reason8021XAuthFailed          Reason = 23
	ReasonCipherSuiteRejected      Reason = 24
	ReasonInvalidPMKID             Reason = 53
	ReasonBeaconTimeout            Reason = 200
	ReasonNoAPFound                Reason = 201
	ReasonAuthFail                 Reason = 202
	ReasonAssocFail                Reason = 203
	ReasonHandshakeTimeout         Reason = 204
	ReasonConnectionFail           Reason = 205
	ReasonAPTSFReset               Reason = 206
	ReasonRoaming                  Reason = 207
	ReasonAssocComebackTimeTooLong Reason = 208
)

var reasonLabels = map[Reason]string{
	ReasonUnspecified:              "UNSPECIFIED",
	ReasonAuthExpire:               "AUTH_EXPIRE",
	ReasonAuthLeave:                "AUTH_LEAVE",
	ReasonAssocExpire:              "ASSOC_EXPIRE",
	ReasonAssocTooMany:             "ASSOC_TOOMANY",
	ReasonNotAuthed:                "NOT_AUTHED",
	ReasonNotAssoced:               "NOT_ASSOCED",
	ReasonAssocLeave:               "ASSOC_LEAVE",
	ReasonAssocNotAuthed:           "ASSOC_NOT_AUTHED",
	ReasonDisassocPwrcapBad:        "DISASSOC_PWRCAP_BAD",
	ReasonDisassocSupchanBad:       "DISASSOC_SUPCHAN_BAD",
	ReasonBSSTransitionDisassoc:    "BSS_TRANSITION_DISASSOC",
	ReasonIEInvalid:                "IE_INVALID",
	ReasonMICFailure:               "MIC_FAILURE",
	Reason4WayHandshakeTimeout:     "4WAY_HANDSHAKE_TIMEOUT",
	ReasonGroupKeyUpdateTimeout:    "GROUP_KEY_UPDATE_TIMEOUT",
	ReasonIEIn4WayDiffers:          "IE_IN_4WAY_DIFFERS",
	ReasonGroupCipherInvalid:       "GROUP_CIPHER_INVALID",
	ReasonPairwiseCipherInvalid:    "PAIRWISE_CIPHER_INVALID",
	ReasonAKMPInvalid:              "AKMP_INVALID",
	ReasonUnsuppRSNIEVersion:       "UNSUPP_RSN_IE_VERSION",
	ReasonInvalidRSNIECap:          "INVALID_RSN_IE_CAP",
	Reason8021XAuthFailed:          "802_1X_AUTH_FAILED",
	ReasonCipherSuiteRejected:      "CIPHER_SUITE_REJECTED",
	ReasonInvalidPMKID:             "INVALID_PMKID",
	ReasonBeaconTimeout:            "BEACON_TIMEOUT",
	ReasonNoAPFound:                "NO_AP_FOUND",
	ReasonAuthFail:                 "AUTH_FAIL",
	ReasonAssocFail:                "ASSOC_FAIL",
	ReasonHandshakeTimeout:         "HANDSHAKE_TIMEOUT",
	ReasonConnectionFail:           "CONNECTION_FAIL",
	ReasonAPTSFReset:               "AP_TSF_RESET",
	ReasonRoaming:                  "ROAMING",
	ReasonAssocComebackTimeTooLong: "ASSOC_COMEBACK_TIME_TOO_LONG",
}

// String returns the diagnostic label for the reason. Unknown codes render as
// UNKNOWN(<code>).
func (r Reason) String() string {
	if label, ok := reasonLabels[r]; ok {
		return label
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint16(r))
}

// Known reports whether the code has a label.
func (r Reason) Known() bool {
	_, ok := reasonLabels[r]
	return ok
}

// MarshalText implements encoding.TextMarshaler. Known codes marshal as their
// label, unknown ones as the decimal code.
func (r Reason) MarshalText() ([]byte, error) {
	if r.Known() {
		return []byte(r.String()), nil
	}
	return []byte(strconv.Itoa(int(r))), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting either a label
// or a decimal code.
func (r *Reason) UnmarshalText(text []byte) error {
	parsed, err := ParseReason(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseReason parses a reason label (case-insensitive, optional "WIFI_REASON_"
// prefix) or a decimal reason code.
func ParseReason(s string) (Reason, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty disconnect reason")
	}

	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return Reason(n), nil
	}

	want := strings.TrimPrefix(strings.ToUpper(s), "WIFI_REASON_")
	for code, label := range reasonLabels {
		if label == want {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unknown disconnect reason %q", s)
}

// Reasons returns every labelled reason sorted by code.
func Reasons() []Reason {
	out := make([]Reason, 0, len(reasonLabels))
	for code := range reasonLabels {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
