// Package datagen produces placeholder values for request and response
// examples. Output is a pure function of the seed, so two renders of the
// same inventory are byte-identical.
package datagen

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultSeed is used by NewDataGenerator
const DefaultSeed int64 = 20240115

// baseTime anchors generated timestamps
var baseTime = time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC)

// DataGenerator generates realistic sample data
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a generator with the default seed
func NewDataGenerator() *DataGenerator {
	return NewSeeded(DefaultSeed)
}

// NewSeeded creates a generator with an explicit seed
func NewSeeded(seed int64) *DataGenerator {
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

// ValueFor picks a value from the field name first and the declared type
// second.
func (g *DataGenerator) ValueFor(fieldName, typeName string) any {
	field := strings.ToLower(fieldName)

	switch {
	case strings.Contains(field, "email"):
		return g.Email()
	case strings.Contains(field, "password") || strings.Contains(field, "secret"):
		return g.Password()
	case strings.Contains(field, "username") || field == "login":
		return g.Username()
	case strings.Contains(field, "firstname") || strings.Contains(field, "first_name"):
		return g.FirstName()
	case strings.Contains(field, "lastname") || strings.Contains(field, "last_name"):
		return g.LastName()
	case strings.Contains(field, "phone"):
		return g.Phone()
	case strings.Contains(field, "street") || strings.Contains(field, "address"):
		return g.Street()
	case strings.Contains(field, "city"):
		return g.City()
	case strings.Contains(field, "country"):
		return g.Country()
	case strings.Contains(field, "zip") || strings.Contains(field, "postal"):
		return g.ZipCode()

	case strings.Contains(field, "price") || strings.Contains(field, "amount") ||
		strings.Contains(field, "cost") || strings.Contains(field, "total"):
		return g.Price()
	case strings.Contains(field, "currency"):
		return g.Currency()

	case strings.Contains(field, "date") || strings.Contains(field, "timestamp") ||
		strings.HasSuffix(field, "_at") || field == "createdat" || field == "updatedat":
		return g.DateTime()

	case strings.Contains(field, "url") || strings.Contains(field, "link") || strings.Contains(field, "website"):
		return g.URL()
	case strings.Contains(field, "image") || strings.Contains(field, "avatar"):
		return g.ImageURL()
	case strings.Contains(field, "slug"):
		return g.Slug()
	case field == "id" || field == "uuid" || strings.HasSuffix(field, "_id") || strings.HasSuffix(fieldName, "Id"):
		if typeName == "integer" || typeName == "number" {
			return g.Int(1, 10000)
		}
		return g.UUID()

	case strings.Contains(field, "company"):
		return g.Company()
	case strings.Contains(field, "description") || strings.Contains(field, "bio") || strings.Contains(field, "content"):
		return g.Sentence()
	case strings.Contains(field, "title") || strings.Contains(field, "subject"):
		return g.Title()
	case strings.Contains(field, "name"):
		return g.FullName()

	case field == "age":
		return g.Int(18, 80)
	case strings.Contains(field, "quantity") || strings.Contains(field, "count") ||
		field == "limit" || field == "page" || field == "offset":
		return g.Int(1, 100)
	case strings.Contains(field, "rating") || strings.Contains(field, "score"):
		return g.Float(1, 5)

	case strings.Contains(field, "status"):
		return g.Status()
	case strings.HasPrefix(field, "is_") || strings.HasPrefix(field, "has_") ||
		strings.Contains(field, "active") || strings.Contains(field, "enabled"):
		return g.Bool()
	}

	return g.ValueForType(typeName)
}

// ValueForType generates by declared type only
func (g *DataGenerator) ValueForType(typeName string) any {
	switch strings.ToLower(typeName) {
	case "int", "int32", "int64", "integer":
		return g.Int(1, 1000)
	case "number", "float", "float64", "double", "decimal":
		return g.Float(0, 1000)
	case "bool", "boolean":
		return g.Bool()
	case "date", "datetime", "date-time", "timestamp":
		return g.DateTime()
	case "email":
		return g.Email()
	case "url", "uri":
		return g.URL()
	case "uuid":
		return g.UUID()
	case "array":
		return []any{g.Word(), g.Word()}
	case "object":
		return map[string]any{}
	default:
		return g.Word()
	}
}

func (g *DataGenerator) Email() string {
	return fmt.Sprintf("%s.%s@example.com",
		strings.ToLower(g.FirstName()),
		strings.ToLower(g.LastName()))
}

func (g *DataGenerator) FirstName() string {
	return g.pick(firstNames)
}

func (g *DataGenerator) LastName() string {
	return g.pick(lastNames)
}

func (g *DataGenerator) FullName() string {
	return g.FirstName() + " " + g.LastName()
}

func (g *DataGenerator) Username() string {
	return fmt.Sprintf("%s%d", strings.ToLower(g.FirstName()), g.rng.Intn(999))
}

// Password returns a fixed-shape placeholder that satisfies common rules
func (g *DataGenerator) Password() string {
	const chars = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, 10)
	for i := range b {
		b[i] = chars[g.rng.Intn(len(chars))]
	}
	return string(b) + "!1"
}

func (g *DataGenerator) Phone() string {
	return fmt.Sprintf("+1-555-%03d-%04d", g.rng.Intn(1000), g.rng.Intn(10000))
}

func (g *DataGenerator) Street() string {
	return fmt.Sprintf("%d %s St", g.rng.Intn(9999)+1, g.pick(streetNames))
}

func (g *DataGenerator) City() string {
	return g.pick(cities)
}

func (g *DataGenerator) Country() string {
	return g.pick(countries)
}

func (g *DataGenerator) ZipCode() string {
	return fmt.Sprintf("%05d", g.rng.Intn(100000))
}

func (g *DataGenerator) Company() string {
	return g.pick(companies)
}

// UUID draws a version 4 UUID from the generator's stream
func (g *DataGenerator) UUID() string {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		return uuid.Nil.String()
	}
	return id.String()
}

func (g *DataGenerator) Slug() string {
	return strings.ToLower(strings.ReplaceAll(g.Title(), " ", "-"))
}

// DateTime returns an RFC3339 timestamp within a year before baseTime
func (g *DataGenerator) DateTime() string {
	return baseTime.AddDate(0, 0, -g.rng.Intn(365)).Format(time.RFC3339)
}

func (g *DataGenerator) URL() string {
	return "https://example.com/" + g.Slug()
}

func (g *DataGenerator) ImageURL() string {
	return fmt.Sprintf("https://example.com/images/%d.png", g.rng.Intn(1000))
}

// Price returns a two-decimal amount
func (g *DataGenerator) Price() float64 {
	return float64(g.rng.Intn(100000)) / 100
}

func (g *DataGenerator) Currency() string {
	return g.pick([]string{"USD", "EUR", "GBP", "JPY"})
}

func (g *DataGenerator) Word() string {
	return g.pick(words)
}

func (g *DataGenerator) Sentence() string {
	n := g.rng.Intn(6) + 4
	w := make([]string, n)
	for i := range w {
		w[i] = g.Word()
	}
	s := strings.Join(w, " ")
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

func (g *DataGenerator) Title() string {
	n := g.rng.Intn(2) + 2
	w := make([]string, n)
	for i := range w {
		word := g.Word()
		w[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(w, " ")
}

// Int returns a value in [min, max]
func (g *DataGenerator) Int(min, max int) int {
	if max <= min {
		return min
	}
	return g.rng.Intn(max-min+1) + min
}

// Float returns a value in [min, max) rounded to two decimals
func (g *DataGenerator) Float(min, max float64) float64 {
	v := min + g.rng.Float64()*(max-min)
	return float64(int(v*100)) / 100
}

func (g *DataGenerator) Bool() bool {
	return g.rng.Intn(2) == 1
}

func (g *DataGenerator) Status() string {
	return g.pick([]string{"active", "pending", "completed", "archived"})
}

func (g *DataGenerator) pick(items []string) string {
	return items[g.rng.Intn(len(items))]
}

var firstNames = []string{
	"Ada", "Grace", "Alan", "Edsger", "Barbara", "Dennis", "Frances", "Ken",
	"Margaret", "Linus", "Radia", "Niklaus", "Katherine", "Donald", "Hedy", "John",
}

var lastNames = []string{
	"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Ritchie", "Allen", "Thompson",
	"Hamilton", "Torvalds", "Perlman", "Wirth", "Johnson", "Knuth", "Lamarr", "McCarthy",
}

var streetNames = []string{
	"Main", "Oak", "Maple", "Cedar", "Lake", "Hill", "Park", "River", "Sunset", "Highland",
}

var cities = []string{
	"Springfield", "Riverside", "Franklin", "Greenville", "Bristol", "Clinton", "Fairview", "Salem",
}

var countries = []string{
	"United States", "Canada", "United Kingdom", "Germany", "France", "Japan", "Brazil", "India",
}

var companies = []string{
	"Acme", "Globex", "Initech", "Umbrella", "Hooli", "Vandelay", "Soylent", "Wonka",
}

var words = []string{
	"alpha", "bravo", "delta", "echo", "orbit", "signal", "vector", "matrix",
	"sample", "example", "widget", "gadget", "record", "item", "ledger", "beacon",
}
