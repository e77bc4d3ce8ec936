package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errPageNotFound(pageID string) *DomainError {
	return domainError(http.StatusNotFound, "PAGE_NOT_FOUND", "Page not found", map[string]any{"pageId": pageID})
}

func errPageInTrash(pageID string) *DomainError {
	return domainError(http.StatusConflict, "PAGE_IN_TRASH", "Page is in the trash", map[string]any{"pageId": pageID})
}

func errPageAlreadyInTrash(pageID string) *DomainError {
	return domainError(http.StatusConflict, "PAGE_ALREADY_IN_TRASH", "Page is already in the trash", map[string]any{"pageId": pageID})
}

func errPageNotInTrash(pageID string) *DomainError {
	return domainError(http.StatusConflict, "PAGE_NOT_IN_TRASH", "Page is not in the trash", map[string]any{"pageId": pageID})
}

func errInvalidParent(reason string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "INVALID_PARENT", reason, nil)
}

func errSlugExists(slug string) *DomainError {
	return domainError(http.StatusConflict, "SLUG_ALREADY_EXISTS", "Public slug is already taken", map[string]any{"slug": slug})
}

func errFavoriteExists(pageID string) *DomainError {
	return domainError(http.StatusConflict, "FAVORITE_EXISTS", "Page is already a favorite", map[string]any{"pageId": pageID})
}

func errFavoriteNotFound(id string) *DomainError {
	return domainError(http.StatusNotFound, "FAVORITE_NOT_FOUND", "Favorite not found", map[string]any{"id": id})
}

func errNotMember() *DomainError {
	return domainError(http.StatusForbidden, "NOT_A_MEMBER", "Not a member of this organization", nil)
}
