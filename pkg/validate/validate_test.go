package validate_test

import (
	"testing"

	"github.com/buddyengineerz/storefront/pkg/validate"
)

type signupInput struct {
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
	Email    string `json:"email"     validate:"required,email"`
	Phone    string `json:"phone"     validate:"nullable,phone"`
	Password string `json:"password"  validate:"required,password"`
}

type addressInput struct {
	Type    string `json:"type"    validate:"required,in=home,work,other"`
	Name    string `json:"name"    validate:"required"`
	Phone   string `json:"phone"   validate:"required,phone"`
	Pincode string `json:"pincode" validate:"required,pincode"`
}

func TestValidSignup(t *testing.T) {
	errs := validate.Struct(signupInput{
		FullName: "Asha Rao",
		Email:    "asha@example.com",
		Phone:    "+91 98765 43210",
		Password: "secret",
	})
	if validate.HasErrors(errs) {
		t.Errorf("expected no errors, got: %v", errs)
	}
}

func TestRequiredFails(t *testing.T) {
	errs := validate.Struct(signupInput{})
	for _, f := range []string{"full_name", "email", "password"} {
		if _, ok := errs[f]; !ok {
			t.Errorf("expected %s to be required, got %v", f, errs)
		}
	}
	if _, ok := errs["phone"]; ok {
		t.Error("nullable phone should not be reported when empty")
	}
}

func TestEmailRule(t *testing.T) {
	type in struct {
		Email string `json:"email" validate:"required,email"`
	}
	if errs := validate.Struct(in{Email: "not-an-email"}); errs["email"] == "" {
		t.Error("expected email validation error")
	}
	if errs := validate.Struct(in{Email: "valid@example.com"}); validate.HasErrors(errs) {
		t.Errorf("expected valid email to pass, got: %v", errs)
	}
}

func TestPasswordRule(t *testing.T) {
	type in struct {
		Password string `json:"password" validate:"required,password"`
	}
	if errs := validate.Struct(in{Password: "12345"}); errs["password"] == "" {
		t.Error("expected 5 character password to fail")
	}
	if errs := validate.Struct(in{Password: "123456"}); validate.HasErrors(errs) {
		t.Errorf("expected 6 character password to pass: %v", errs)
	}
}

func TestPincodeRule(t *testing.T) {
	base := addressInput{Type: "home", Name: "Asha", Phone: "9876543210"}

	for _, bad := range []string{"1234", "abcdef", "56000", "5600011", "56 001"} {
		in := base
		in.Pincode = bad
		errs := validate.Struct(in)
		if errs["pincode"] == "" {
			t.Errorf("pincode %q: expected field error, got %v", bad, errs)
		}
		if len(errs) != 1 {
			t.Errorf("pincode %q: only pincode should fail, got %v", bad, errs)
		}
	}

	in := base
	in.Pincode = "560001"
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		t.Errorf("expected 560001 to pass: %v", errs)
	}
}

func TestPhoneRule(t *testing.T) {
	valid := []string{"9876543210", "+919876543210", "09876543210", "98765-43210"}
	for _, p := range valid {
		if !validate.Phone(p) {
			t.Errorf("expected %q to be valid", p)
		}
	}
	invalid := []string{"12345", "5876543210", "98765432101", "phone"}
	for _, p := range invalid {
		if validate.Phone(p) {
			t.Errorf("expected %q to be invalid", p)
		}
	}
}

func TestInRule(t *testing.T) {
	in := addressInput{Type: "office", Name: "A", Phone: "9876543210", Pincode: "560001"}
	if errs := validate.Struct(in); errs["type"] == "" {
		t.Error("expected invalid address type to fail")
	}
	in.Type = "work"
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		t.Errorf("expected work to pass: %v", errs)
	}
}

func TestNumericBounds(t *testing.T) {
	type in struct {
		Quantity int `json:"quantity" validate:"required,gte=1,lte=10"`
	}
	if errs := validate.Struct(in{Quantity: 11}); !validate.HasErrors(errs) {
		t.Error("expected quantity > 10 to fail")
	}
	if errs := validate.Struct(in{Quantity: 2}); validate.HasErrors(errs) {
		t.Errorf("expected quantity 2 to pass, got: %v", errs)
	}
}

func TestPointerFields(t *testing.T) {
	type in struct {
		Price *float64 `json:"price" validate:"nullable,gt=0"`
		Stock *int     `json:"stock" validate:"required,gte=0"`
	}
	neg := -1.0
	errs := validate.Struct(in{Price: &neg})
	if errs["price"] == "" {
		t.Error("expected negative price to fail")
	}
	if errs["stock"] == "" {
		t.Error("expected nil required pointer to fail")
	}

	zero := 0
	if errs := validate.Struct(in{Stock: &zero}); validate.HasErrors(errs) {
		t.Errorf("expected nil nullable price and zero stock pointer to pass: %v", errs)
	}
}

func TestSlugRule(t *testing.T) {
	type in struct {
		Slug string `json:"slug" validate:"nullable,slug"`
	}
	if errs := validate.Struct(in{Slug: "graphic-tees"}); validate.HasErrors(errs) {
		t.Errorf("expected slug to pass: %v", errs)
	}
	if errs := validate.Struct(in{Slug: "Graphic Tees"}); !validate.HasErrors(errs) {
		t.Error("expected spaces and capitals to fail")
	}
}
