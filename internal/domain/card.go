package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldSeparator joins the fields of a note in the flds column.
const FieldSeparator = "\x1f"

// ErrInvalidContent is returned when card content fails boundary validation.
var ErrInvalidContent = errors.New("invalid card content")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("nosep", func(fl validator.FieldLevel) bool {
		return !strings.Contains(fl.Field().String(), FieldSeparator)
	})
	_ = v.RegisterValidation("tagname", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return !strings.ContainsAny(s, " \t\r\n"+FieldSeparator)
	})
	return v
}

// Content is the text and media of one flashcard, as supplied by a caller.
type Content struct {
	Front string   `validate:"required,nosep"`
	Back  string   `validate:"nosep"`
	Sound []byte   // optional audio payload
	Tags  []string `validate:"dive,required,tagname"`
}

// Validate rejects content that would corrupt the notes table: an empty
// front, embedded field separators, or tags containing whitespace.
func (c Content) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %q check", ErrInvalidContent, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return nil
}

// Fields returns the ordered note fields: front, back, sound reference and
// a reserved empty field.
func (c Content) Fields(soundRef string) []string {
	return []string{c.Front, c.Back, soundRef, ""}
}

// JoinFields encodes fields for the flds column. Fields must not contain
// FieldSeparator; Content.Validate enforces this for caller input.
func JoinFields(fields []string) string {
	return strings.Join(fields, FieldSeparator)
}

// FormatTags encodes tags for the tags column. A non-empty result is padded
// with a space on both sides so that a search for " tag " matches whole tags.
func FormatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return " " + strings.Join(tags, " ") + " "
}

// Note is one row of the notes table.
type Note struct {
	ID       int64
	GUID     string
	ModelID  int64
	Mod      int64
	USN      int64
	Tags     string
	Fields   string
	SortFld  string
	Checksum uint32
	Flags    int64
	Data     string
}

// Card is one row of the cards table. Scheduling columns other than Due
// are written with the host application's new-card defaults.
type Card struct {
	ID      int64
	NoteID  int64
	DeckID  int64
	Ordinal int
	Mod     int64
	USN     int64
	Due     int64
}
