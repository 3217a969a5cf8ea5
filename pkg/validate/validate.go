// Package validate implements struct-tag validation with field-level error
// messages keyed by the json field name.
//
// Rules (comma-separated in the `validate` tag, first failure wins):
//
//	required            field must not be zero/empty
//	nullable            if empty, skip the remaining rules
//	email               valid email address
//	phone               Indian mobile number; +91/0 prefix and spaces allowed
//	pincode             exactly six digits
//	password            at least six characters
//	slug                lowercase letters, digits and hyphens
//	url                 http/https URL
//	uuid                UUID string
//	numeric, integer
//	min=N, max=N        string length or numeric bound
//	gt=N, gte=N, lte=N  numeric bounds
//	in=a,b,c            one of the listed values
//	regex=pattern       pattern must not contain commas
//
// Pointer fields are dereferenced; a nil pointer counts as empty.
//
//	type AddressInput struct {
//	    Pincode string `json:"pincode" validate:"required,pincode"`
//	    Type    string `json:"type"    validate:"required,in=home,work,other"`
//	}
package validate

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Struct validates the exported fields of v that carry a `validate` tag.
// Returns fieldName → message; an empty map means valid.
func Struct(v interface{}) map[string]string {
	errs := make(map[string]string)
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return errs
	}
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}

		value := rv.Field(i)
		wasPtr := value.Kind() == reflect.Ptr
		if wasPtr {
			if value.IsNil() {
				if hasRule(splitRules(tag), "required") {
					name := jsonFieldName(field)
					errs[name] = fmt.Sprintf("The %s field is required.", label(name))
				}
				continue
			}
			value = value.Elem()
		}

		name := jsonFieldName(field)
		rules := splitRules(tag)

		if hasRule(rules, "nullable") && isEmpty(value) {
			continue
		}

		for _, rule := range rules {
			if rule == "nullable" || (rule == "required" && wasPtr) {
				continue
			}
			if msg := applyRule(rule, name, value); msg != "" {
				errs[name] = msg
				break
			}
		}
	}

	return errs
}

// HasErrors returns true when errs is non-empty.
func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

// Pincode reports whether s is a six digit Indian postal code.
func Pincode(s string) bool { return pincodeRE.MatchString(s) }

// Phone reports whether s is a valid Indian mobile number.
func Phone(s string) bool { return phoneRE.MatchString(NormalizePhone(s)) }

// Email reports whether s looks like an email address.
func Email(s string) bool { return emailRE.MatchString(s) }

// NormalizePhone strips spaces, dashes and a leading +91 or 0.
func NormalizePhone(s string) string {
	s = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "+91"):
		s = s[3:]
	case strings.HasPrefix(s, "91") && len(s) == 12:
		s = s[2:]
	case strings.HasPrefix(s, "0") && len(s) == 11:
		s = s[1:]
	}
	return s
}

const minPasswordLen = 6

func applyRule(rule, field string, v reflect.Value) string {
	raw := fmt.Sprintf("%v", v.Interface())
	key, param, _ := strings.Cut(rule, "=")
	name := label(field)

	switch key {
	case "required":
		if isEmpty(v) {
			return fmt.Sprintf("The %s field is required.", name)
		}

	case "email":
		if !Email(raw) {
			return fmt.Sprintf("The %s must be a valid email address.", name)
		}
	case "phone":
		if !Phone(raw) {
			return fmt.Sprintf("The %s must be a valid 10 digit mobile number.", name)
		}
	case "pincode":
		if !Pincode(raw) {
			return fmt.Sprintf("The %s must be exactly 6 digits.", name)
		}
	case "password":
		if len([]rune(raw)) < minPasswordLen {
			return fmt.Sprintf("The %s must be at least %d characters.", name, minPasswordLen)
		}
	case "slug":
		if !slugRE.MatchString(raw) {
			return fmt.Sprintf("The %s may only contain lowercase letters, numbers and hyphens.", name)
		}
	case "url":
		u, err := url.ParseRequestURI(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Sprintf("The %s must be a valid URL.", name)
		}
	case "uuid":
		if !uuidRE.MatchString(raw) {
			return fmt.Sprintf("The %s must be a valid UUID.", name)
		}
	case "numeric":
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return fmt.Sprintf("The %s field must be a number.", name)
		}
	case "integer":
		if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
			return fmt.Sprintf("The %s field must be an integer.", name)
		}

	case "min":
		n := mustParseFloat(param)
		if isNumericKind(v) {
			if toFloat(v) < n {
				return fmt.Sprintf("The %s must be at least %s.", name, param)
			}
		} else if float64(length(v, raw)) < n {
			return fmt.Sprintf("The %s must be at least %s characters.", name, param)
		}
	case "max":
		n := mustParseFloat(param)
		if isNumericKind(v) {
			if toFloat(v) > n {
				return fmt.Sprintf("The %s must not be greater than %s.", name, param)
			}
		} else if float64(length(v, raw)) > n {
			return fmt.Sprintf("The %s must not exceed %s characters.", name, param)
		}
	case "gt":
		if toFloat(v) <= mustParseFloat(param) {
			return fmt.Sprintf("The %s must be greater than %s.", name, param)
		}
	case "gte":
		if toFloat(v) < mustParseFloat(param) {
			return fmt.Sprintf("The %s must be greater than or equal to %s.", name, param)
		}
	case "lte":
		if toFloat(v) > mustParseFloat(param) {
			return fmt.Sprintf("The %s must be less than or equal to %s.", name, param)
		}

	case "in":
		for _, a := range strings.Split(param, ",") {
			if raw == strings.TrimSpace(a) {
				return ""
			}
		}
		return fmt.Sprintf("The selected %s is invalid.", name)

	case "regex":
		re, err := regexp.Compile(param)
		if err != nil {
			return fmt.Sprintf("The %s has an invalid validation pattern.", name)
		}
		if !re.MatchString(raw) {
			return fmt.Sprintf("The %s format is invalid.", name)
		}
	}

	return ""
}

var (
	emailRE   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRE   = regexp.MustCompile(`^[6-9]\d{9}$`)
	pincodeRE = regexp.MustCompile(`^\d{6}$`)
	slugRE    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	uuidRE    = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// label turns "full_name" into "full name" for messages.
func label(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

func length(v reflect.Value, raw string) int {
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len()
	}
	return len([]rune(raw))
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return false
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	}
	return false
}

func isNumericKind(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	f, _ := strconv.ParseFloat(fmt.Sprintf("%v", v.Interface()), 64)
	return f
}

func mustParseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func jsonFieldName(f reflect.StructField) string {
	name := f.Tag.Get("json")
	if name == "" || name == "-" {
		return strings.ToLower(f.Name)
	}
	if idx := strings.Index(name, ","); idx != -1 {
		name = name[:idx]
	}
	return name
}

// splitRules splits the tag by comma, keeping the values of an in= rule
// together: "required,in=home,work,other" → ["required", "in=home,work,other"].
func splitRules(tag string) []string {
	var rules []string
	parts := strings.Split(tag, ",")
	for i := 0; i < len(parts); i++ {
		p := strings.TrimSpace(parts[i])
		if strings.HasPrefix(p, "in=") {
			for i+1 < len(parts) && !looksLikeRule(parts[i+1]) {
				i++
				p += "," + strings.TrimSpace(parts[i])
			}
		}
		if p != "" {
			rules = append(rules, p)
		}
	}
	return rules
}

var knownRules = map[string]bool{
	"required": true, "nullable": true, "email": true, "phone": true,
	"pincode": true, "password": true, "slug": true, "url": true, "uuid": true,
	"numeric": true, "integer": true, "min": true, "max": true, "gt": true,
	"gte": true, "lte": true, "in": true, "regex": true,
}

func looksLikeRule(s string) bool {
	key, _, _ := strings.Cut(strings.TrimSpace(s), "=")
	return knownRules[key]
}

func hasRule(rules []string, target string) bool {
	for _, r := range rules {
		if strings.TrimSpace(r) == target {
			return true
		}
	}
	return false
}
