package app

import (
	"context"
	"fmt"

	"larder/pkg/apperr"
	"larder/services/pantry/domain"
)

func photoKey(user domain.UserID, id domain.IngredientID) string {
	return fmt.Sprintf("ingredients/%s/%s", user.Value(), id.Value())
}

func (s *Service) photoStorage() (PhotoStorage, error) {
	if s.photos == nil {
		return nil, apperr.Conflict(apperr.CodePhotosDisabled, "ingredient photos are not configured")
	}
	return s.photos, nil
}

// PresignIngredientPhotoUpload attaches a photo key to the ingredient and returns a URL the
// client can PUT the image to.
func (s *Service) PresignIngredientPhotoUpload(ctx context.Context, cmd IngredientCommand) (PhotoURL, error) {
	user, id, err := parseOwnedIngredient(cmd.UserID, cmd.IngredientID)
	if err != nil {
		return PhotoURL{}, err
	}
	photos, err := s.photoStorage()
	if err != nil {
		return PhotoURL{}, err
	}

	key := photoKey(user, id)
	now := s.now()
	err = s.store.InTx(ctx, func(tx Store) error {
		ing, err := findIngredient(ctx, tx, user, id)
		if err != nil {
			return err
		}
		if ing.PhotoKey == key {
			return nil
		}
		ing.PhotoKey = key
		ing.UpdatedAt = now
		if err := tx.Ingredients().Save(ctx, ing); err != nil {
			return apperr.Internal("save ingredient", err)
		}
		return nil
	})
	if err != nil {
		return PhotoURL{}, err
	}

	url, err := photos.PresignPut(ctx, key, s.photoTTL)
	if err != nil {
		return PhotoURL{}, apperr.Internal("presign photo upload", err)
	}
	return PhotoURL{URL: url, Key: key, ExpiresAt: now.Add(s.photoTTL)}, nil
}

// PresignIngredientPhoto returns a download URL for the ingredient's photo.
func (s *Service) PresignIngredientPhoto(ctx context.Context, cmd IngredientCommand) (PhotoURL, error) {
	user, id, err := parseOwnedIngredient(cmd.UserID, cmd.IngredientID)
	if err != nil {
		return PhotoURL{}, err
	}
	photos, err := s.photoStorage()
	if err != nil {
		return PhotoURL{}, err
	}

	ing, err := findIngredient(ctx, s.store, user, id)
	if err != nil {
		return PhotoURL{}, err
	}
	if ing.PhotoKey == "" {
		return PhotoURL{}, apperr.NotFound(apperr.CodePhotoNotFound, "ingredient has no photo")
	}

	url, err := photos.PresignGet(ctx, ing.PhotoKey, s.photoTTL)
	if err != nil {
		return PhotoURL{}, apperr.Internal("presign photo download", err)
	}
	return PhotoURL{URL: url, Key: ing.PhotoKey, ExpiresAt: s.now().Add(s.photoTTL)}, nil
}
