package domain

import (
	"strings"
	"time"
)

// Customer — покупатель магазина. Адрес хранится плоско, без отдельного value object.
type Customer struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	Street    string
	City      string
	State     string
	Zip       string
	Country   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomerInput — полный набор полей для создания или PUT-обновления.
type CustomerInput struct {
	Name    string
	Email   string
	Phone   string
	Street  string
	City    string
	State   string
	Zip     string
	Country string
}

// NormalizeEmail приводит email к каноническому виду для проверки уникальности.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate проверяет обязательные поля.
func (in CustomerInput) Validate() error {
	fields := map[string]string{
		"name":    in.Name,
		"email":   in.Email,
		"phone":   in.Phone,
		"street":  in.Street,
		"city":    in.City,
		"state":   in.State,
		"zip":     in.Zip,
		"country": in.Country,
	}
	for _, name := range []string{"name", "email", "phone", "street", "city", "state", "zip", "country"} {
		if strings.TrimSpace(fields[name]) == "" {
			return Validationf("customer %s is required", name)
		}
	}
	return nil
}

// Patch превращает полный ввод в patch со всеми полями.
func (in CustomerInput) Patch() CustomerPatch {
	email := NormalizeEmail(in.Email)
	return CustomerPatch{
		Name:    ptr(in.Name),
		Email:   &email,
		Phone:   ptr(in.Phone),
		Street:  ptr(in.Street),
		City:    ptr(in.City),
		State:   ptr(in.State),
		Zip:     ptr(in.Zip),
		Country: ptr(in.Country),
	}
}

// CustomerPatch — частичное обновление покупателя.
type CustomerPatch struct {
	Name    *string
	Email   *string
	Phone   *string
	Street  *string
	City    *string
	State   *string
	Zip     *string
	Country *string
}

func (p CustomerPatch) fields() []*string {
	return []*string{p.Name, p.Email, p.Phone, p.Street, p.City, p.State, p.Zip, p.Country}
}

// Empty сообщает, что patch пуст.
func (p CustomerPatch) Empty() bool {
	for _, f := range p.fields() {
		if f != nil {
			return false
		}
	}
	return true
}

// Validate проверяет, что patch не пуст и переданные поля не пустые.
func (p CustomerPatch) Validate() error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	for _, f := range p.fields() {
		if f != nil && strings.TrimSpace(*f) == "" {
			return Validationf("customer fields must not be empty")
		}
	}
	return nil
}

// Normalized возвращает копию patch с нормализованным email.
func (p CustomerPatch) Normalized() CustomerPatch {
	if p.Email != nil {
		email := NormalizeEmail(*p.Email)
		p.Email = &email
	}
	return p
}

// Apply применяет patch к покупателю.
func (p CustomerPatch) Apply(c Customer) Customer {
	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	assign(&c.Name, p.Name)
	assign(&c.Email, p.Email)
	assign(&c.Phone, p.Phone)
	assign(&c.Street, p.Street)
	assign(&c.City, p.City)
	assign(&c.State, p.State)
	assign(&c.Zip, p.Zip)
	assign(&c.Country, p.Country)
	return c
}

// CustomerUpdate — размеченный вариант обновления покупателя.
type CustomerUpdate struct {
	Mode    UpdateMode
	Full    CustomerInput
	Partial CustomerPatch
}

// FullCustomerUpdate строит PUT-обновление.
func FullCustomerUpdate(in CustomerInput) CustomerUpdate {
	return CustomerUpdate{Mode: UpdateModeFull, Full: in}
}

// PartialCustomerUpdate строит PATCH-обновление.
func PartialCustomerUpdate(p CustomerPatch) CustomerUpdate {
	return CustomerUpdate{Mode: UpdateModePartial, Partial: p}
}

// Resolve проверяет вариант и сводит его к нормализованному patch.
func (u CustomerUpdate) Resolve() (CustomerPatch, error) {
	switch u.Mode {
	case UpdateModeFull:
		if err := u.Full.Validate(); err != nil {
			return CustomerPatch{}, err
		}
		return u.Full.Patch(), nil
	case UpdateModePartial:
		if err := u.Partial.Validate(); err != nil {
			return CustomerPatch{}, err
		}
		return u.Partial.Normalized(), nil
	default:
		return CustomerPatch{}, Validationf("unsupported update mode %d", u.Mode)
	}
}

// CustomerFilter — условия выборки списка покупателей.
type CustomerFilter struct {
	// Search совпадает с email целиком или с подстрокой имени без учёта регистра.
	Search string
}

// Matches проверяет покупателя на соответствие фильтру.
func (f CustomerFilter) Matches(c Customer) bool {
	search := strings.TrimSpace(f.Search)
	if search == "" {
		return true
	}
	if c.Email == NormalizeEmail(search) {
		return true
	}
	return strings.Contains(strings.ToLower(c.Name), strings.ToLower(search))
}

func ptr[T any](v T) *T {
	return &v
}
