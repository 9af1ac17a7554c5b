package httpclient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/tidwall/gjson"
)

// maxScanDepth bounds the reflective walk over unknown error values.
const maxScanDepth = 4

// Classify maps any error to an *APIError. It has no side effects and is
// idempotent: an *APIError, or an error wrapping one, is returned unchanged.
// A nil error yields nil.
func Classify(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	f, _ := AsFailure(err)
	if f != nil && f.Response != nil {
		return classifyResponse(err, f)
	}
	return classifyNoResponse(err, f)
}

func newAPIError(err error, code int, kind Kind, tm titledMessage) *APIError {
	return &APIError{Code: code, Kind: kind, Title: tm.Title, Message: tm.Message, err: err}
}

func classifyNoResponse(err error, f *Failure) *APIError {
	code := ""
	if f != nil {
		code = f.Code
		if f.WeakNetwork || code == CodeWeakNetwork {
			return newAPIError(err, 0, KindWeakNetwork, msgWeakNetwork)
		}
	}
	text := strings.ToLower(err.Error())

	switch {
	case code == CodeConnRefused || code == CodeCircuitOpen || isServerDownErr(err) || isServerDownText(text):
		return newAPIError(err, 0, KindServerDown, msgServerDown)
	case code == CodeNetwork || isNetworkErr(err) || isNetworkText(text):
		return newAPIError(err, 0, KindNetwork, msgNetwork)
	case code == CodeTimeout || isTimeoutErr(err) || strings.Contains(text, "timeout"):
		return newAPIError(err, 0, KindTimeout, msgTimeout)
	}

	// The error may have lost its code on the way here. Look at what its own
	// string fields still say.
	kind := KindNetwork
	scanStrings(reflect.ValueOf(err), maxScanDepth, func(s string) bool {
		s = strings.ToLower(s)
		switch {
		case isServerDownText(s):
			kind = KindServerDown
			return true
		case strings.Contains(s, "network") || strings.Contains(s, "err_network"):
			kind = KindNetwork
			return true
		}
		return false
	})
	if kind == KindServerDown {
		return newAPIError(err, 0, KindServerDown, msgServerDown)
	}
	return newAPIError(err, 0, KindNetwork, msgNetwork)
}

func isServerDownText(s string) bool {
	return strings.Contains(s, "econnrefused") || strings.Contains(s, "server is down") ||
		strings.Contains(s, "connection refused")
}

func isNetworkText(s string) bool {
	return strings.Contains(s, "network error") || strings.Contains(s, "err_network")
}

func isServerDownErr(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

func isNetworkErr(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}

func isTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || IsErrorType(err, TimeoutError) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// scanStrings walks v depth-first and calls visit on every string it finds,
// stopping when visit returns true.
func scanStrings(v reflect.Value, depth int, visit func(string) bool) bool {
	if depth < 0 || !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.String:
		return visit(v.String())
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return false
		}
		return scanStrings(v.Elem(), depth, visit)
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if scanStrings(v.Field(i), depth-1, visit) {
				return true
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if scanStrings(iter.Value(), depth-1, visit) {
				return true
			}
		}
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return false
		}
		for i := 0; i < v.Len(); i++ {
			if scanStrings(v.Index(i), depth-1, visit) {
				return true
			}
		}
	}
	return false
}

func classifyResponse(err error, f *Failure) *APIError {
	status := f.Response.StatusCode
	var body gjson.Result
	if gjson.ValidBytes(f.Response.Body) {
		body = gjson.ParseBytes(f.Response.Body)
	}

	if status == http.StatusTooManyRequests {
		if wait, ok := ParseRetryAfter(f.Response.Headers.Get("Retry-After"), time.Now()); ok {
			secs := int64(math.Ceil(wait.Seconds()))
			return &APIError{
				Code:       status,
				Kind:       KindRateLimited,
				Title:      msgThrottling.Title,
				Message:    fmt.Sprintf("Too many requests. Please wait %d seconds.", secs),
				Details:    fmt.Sprintf("Retry after: %ds", secs),
				RetryAfter: wait,
				err:        err,
			}
		}
	}

	apiErr := &APIError{Code: status, err: err}
	detail := body.Get("detail")
	fieldErrors := detail.IsArray()

	switch msg := strings.TrimSpace(body.Get("message").String()); {
	case body.Get("message").Type == gjson.String && msg != "":
		apiErr.Title = titleFromMessage(msg, status)
		apiErr.Message = msg
	case detail.Exists() && detailText(detail) != "":
		apiErr.Message = detailText(detail)
		if fieldErrors {
			apiErr.Title = "Validation Error"
		} else {
			apiErr.Title = titleFromMessage(apiErr.Message, status)
		}
	default:
		if tm, ok := backendErrorCodes[strings.ToLower(body.Get("error").String())]; ok {
			apiErr.Title, apiErr.Message = tm.Title, tm.Message
			break
		}
		tm, ok := statusMessages[status]
		if !ok {
			tm = msgUnknown
		}
		apiErr.Title, apiErr.Message = tm.Title, tm.Message
		if status == http.StatusUnprocessableEntity {
			if first := firstFieldError(body.Get("errors")); first != "" {
				apiErr.Message = first
			}
		}
	}

	if errs := body.Get("errors"); errs.Exists() {
		apiErr.Details = errs.Raw
	}
	apiErr.Kind = responseKind(status, apiErr.Message, detail, fieldErrors)
	return apiErr
}

// detailText renders a "detail" value: field error arrays as "Field: msg"
// joined by "; ", objects through their own message or error, strings verbatim.
func detailText(detail gjson.Result) string {
	switch {
	case detail.IsArray():
		var parts []string
		detail.ForEach(func(_, item gjson.Result) bool {
			if s := fieldErrorText(item); s != "" {
				parts = append(parts, s)
			}
			return true
		})
		return strings.Join(parts, "; ")
	case detail.IsObject():
		for _, key := range []string{"message", "error", "detail"} {
			if v := detail.Get(key); v.Type == gjson.String && v.Str != "" {
				return v.Str
			}
		}
		return ""
	case detail.Type == gjson.String:
		return strings.TrimSpace(detail.Str)
	default:
		return ""
	}
}

func fieldErrorText(item gjson.Result) string {
	if item.Type == gjson.String {
		return item.Str
	}
	msg := item.Get("msg").String()
	if msg == "" {
		msg = item.Get("message").String()
	}
	if msg == "" {
		return ""
	}

	field := item.Get("field").String()
	if field == "" {
		if loc := item.Get("loc"); loc.IsArray() {
			locs := loc.Array()
			field = locs[len(locs)-1].String()
		}
	}
	if field == "" {
		return msg
	}
	return capitalize(field) + ": " + msg
}

func firstFieldError(errs gjson.Result) string {
	if !errs.IsObject() {
		return ""
	}
	var first string
	errs.ForEach(func(_, v gjson.Result) bool {
		switch {
		case v.IsArray() && len(v.Array()) > 0:
			first = v.Array()[0].String()
		case v.Type == gjson.String:
			first = v.Str
		}
		return false
	})
	return first
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func titleFromMessage(msg string, status int) string {
	switch {
	case strings.Contains(msg, "OTP") || strings.Contains(msg, "verification"):
		return "Verification Error"
	case strings.Contains(msg, "employee"):
		return "Employee Error"
	case status == http.StatusUnauthorized && !isRoleDenial(msg):
		return "Authentication Error"
	case strings.Contains(strings.ToLower(msg), "permission") || strings.Contains(strings.ToLower(msg), "access"):
		return "Access Denied"
	case status == http.StatusUnauthorized:
		return "Authentication Error"
	case status == http.StatusForbidden:
		return "Access Denied"
	case status == http.StatusNotFound:
		return "Not Found"
	case status == http.StatusUnprocessableEntity:
		return "Validation Error"
	}
	if tm, ok := statusMessages[status]; ok {
		return tm.Title
	}
	return msgUnknown.Title
}

func responseKind(status int, message string, detail gjson.Result, fieldErrors bool) Kind {
	switch {
	case status == http.StatusUnauthorized:
		if isRoleDenial(message) || isRoleDenial(detail.String()) {
			return KindPermissionDenied
		}
		return KindAuth
	case status == http.StatusForbidden:
		return KindPermissionDenied
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity || fieldErrors:
		return KindValidation
	case status >= 500 && status < 600:
		return KindServer
	case status >= 400 && status < 500:
		return KindClient
	default:
		return KindUnknown
	}
}

func isRoleDenial(text string) bool {
	text = strings.ToLower(text)
	for _, phrase := range denialPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// ParseRetryAfter parses a Retry-After header value given in seconds or as an
// HTTP date. Dates in the past yield zero.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if at, err := http.ParseTime(value); err == nil {
		wait := at.Sub(now)
		if wait < 0 {
			wait = 0
		}
		return wait, true
	}
	return 0, false
}
