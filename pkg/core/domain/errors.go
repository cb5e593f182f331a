package domain

import "errors"

var (
	ErrNotFound      = errors.New("link not found")
	ErrSlugTaken     = errors.New("short url already exists")
	ErrInvalidSlug   = errors.New("short url may only contain lower-case letters and digits")
	ErrReservedSlug  = errors.New("short url is reserved")
	ErrInvalidURL    = errors.New("long url is not a valid http(s) url")
	ErrUnicodeURL    = errors.New("Unicode error. Check URL characters.")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("owner is required")
	ErrCooldown      = errors.New("link was validated less than an hour ago")
	ErrSlugExhausted = errors.New("failed to generate a unique short url")
)
