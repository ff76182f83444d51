package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"nft-marketplace/pkg/money"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// maxWeiDigits bounds wei strings to the uint256 range in decimal.
const maxWeiDigits = 78

var safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("safe_id", validateSafeID)
		_ = v.RegisterValidation("eth_address", validateEthAddress)
		_ = v.RegisterValidation("wei", validateWei)
		_ = v.RegisterValidation("price", validatePrice)
	}
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

// validateEthAddress accepts 0x-prefixed 20 byte hex addresses.
func validateEthAddress(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// validateWei accepts non-negative base-10 integers up to uint256 width.
func validateWei(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || len(s) > maxWeiDigits {
		return false
	}
	_, err := money.ParseWei(s)
	return err == nil
}

// validatePrice accepts base-10 integers of either sign up to uint256 width.
// The sign is left to the handler so a negative price reports as an invalid
// price rather than a malformed body.
func validatePrice(fl validator.FieldLevel) bool {
	s := strings.TrimPrefix(fl.Field().String(), "-")
	if s == "" || len(s) > maxWeiDigits {
		return false
	}
	_, err := money.ParseWei(s)
	return err == nil
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
