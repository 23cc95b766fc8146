package domain

const (
	// DefaultPageLimit — размер страницы по умолчанию.
	DefaultPageLimit = 100
	// MaxPageLimit — верхняя граница limit.
	MaxPageLimit = 1000
)

// Page задаёт окно выборки для list-операций.
type Page struct {
	Skip  int
	Limit int
}

// DefaultPage возвращает окно skip=0, limit=100.
func DefaultPage() Page {
	return Page{Skip: 0, Limit: DefaultPageLimit}
}

// NewPage проверяет параметры окна: skip >= 0, 1 <= limit <= 1000.
func NewPage(skip, limit int) (Page, error) {
	p := Page{Skip: skip, Limit: limit}
	if err := p.Validate(); err != nil {
		return Page{}, err
	}
	return p, nil
}

// Validate проверяет границы окна.
func (p Page) Validate() error {
	if p.Skip < 0 {
		return Validationf("skip must be greater than or equal to 0")
	}
	if p.Limit < 1 || p.Limit > MaxPageLimit {
		return Validationf("limit must be between 1 and %d", MaxPageLimit)
	}
	return nil
}

// Window возвращает границы среза [from, to) для коллекции длины n.
func (p Page) Window(n int) (int, int) {
	from := p.Skip
	if from > n {
		from = n
	}
	to := from + p.Limit
	if to > n {
		to = n
	}
	return from, to
}
