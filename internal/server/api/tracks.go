package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/m3rciful/pricewatch/internal/models"
	"github.com/m3rciful/pricewatch/internal/server/pricesource"
	"github.com/m3rciful/pricewatch/internal/server/storage"
)

const (
	detailTrackNotFound   = "Товар не найден"
	detailTrackExists     = "Товар с таким артикулом уже отслеживается"
	detailProductNotFound = "Товар с таким артикулом не найден на маркетплейсе"
	detailSourceFailed    = "Маркетплейс временно недоступен"
	detailBadMarketplace  = "Неизвестный маркетплейс"
	detailNegativePrice   = "Желаемая цена не может быть отрицательной"
)

func (h *Handler) listTracks(w http.ResponseWriter, r *http.Request) {
	filter := storage.TrackFilter{OwnerID: currentUser(r).ID}
	if raw := r.URL.Query().Get("marketplace"); raw != "" {
		m := models.Marketplace(raw)
		if !m.Valid() {
			respondDetail(w, http.StatusUnprocessableEntity, detailBadMarketplace)
			return
		}
		filter.Marketplace = &m
	}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		active := raw == "true"
		filter.IsActive = &active
	}
	tracks, err := h.store.Tracks(r.Context(), filter)
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	respondJSON(w, http.StatusOK, tracks)
}

func (h *Handler) createTrack(w http.ResponseWriter, r *http.Request) {
	var in models.TrackCreate
	if !decodeJSON(w, r, &in) {
		return
	}
	if !in.Marketplace.Valid() {
		respondDetail(w, http.StatusUnprocessableEntity, detailBadMarketplace)
		return
	}
	if in.TargetPrice.IsNegative() {
		respondDetail(w, http.StatusBadRequest, detailNegativePrice)
		return
	}

	product, err := h.source.Lookup(r.Context(), in.Marketplace, in.Article)
	if errors.Is(err, pricesource.ErrProductNotFound) {
		respondDetail(w, http.StatusBadRequest, detailProductNotFound)
		return
	}
	if err != nil {
		respondDetail(w, http.StatusBadGateway, detailSourceFailed)
		return
	}

	now := time.Now().UTC()
	track, err := h.store.CreateTrack(r.Context(), models.Track{
		Marketplace:   in.Marketplace,
		Article:       in.Article,
		Title:         product.Title,
		TargetPrice:   in.TargetPrice,
		CurrentPrice:  product.Price,
		IsActive:      true,
		LastCheckedAt: &now,
		OwnerID:       currentUser(r).ID,
	})
	if errors.Is(err, storage.ErrDuplicate) {
		respondDetail(w, http.StatusBadRequest, detailTrackExists)
		return
	}
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	// Seed the history with the price seen at creation.
	if _, err := h.store.AppendHistory(r.Context(), track.ID, track.CurrentPrice); err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	respondJSON(w, http.StatusCreated, track)
}

// ownedTrack loads the track and enforces that it belongs to the caller.
// Foreign tracks look like missing ones.
func (h *Handler) ownedTrack(w http.ResponseWriter, r *http.Request) (*models.Track, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	track, err := h.store.TrackByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondDetail(w, http.StatusNotFound, detailTrackNotFound)
		return nil, false
	}
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return nil, false
	}
	if track.OwnerID != currentUser(r).ID {
		respondDetail(w, http.StatusNotFound, detailTrackNotFound)
		return nil, false
	}
	return track, true
}

func (h *Handler) updateTrack(w http.ResponseWriter, r *http.Request) {
	track, ok := h.ownedTrack(w, r)
	if !ok {
		return
	}
	var patch models.TrackUpdate
	if !decodeJSON(w, r, &patch) {
		return
	}
	if patch.TargetPrice != nil && patch.TargetPrice.IsNegative() {
		respondDetail(w, http.StatusBadRequest, detailNegativePrice)
		return
	}
	// A new target price re-arms the notification.
	if patch.TargetPrice != nil && patch.Notified == nil {
		rearmed := false
		patch.Notified = &rearmed
	}
	updated, err := h.store.UpdateTrack(r.Context(), track.ID, patch)
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// refreshTrack re-reads the marketplace and stores the fresh title and
// price.
func (h *Handler) refreshTrack(w http.ResponseWriter, r *http.Request) {
	track, ok := h.ownedTrack(w, r)
	if !ok {
		return
	}
	product, err := h.source.Lookup(r.Context(), track.Marketplace, track.Article)
	if errors.Is(err, pricesource.ErrProductNotFound) {
		respondDetail(w, http.StatusBadRequest, detailProductNotFound)
		return
	}
	if err != nil {
		respondDetail(w, http.StatusBadGateway, detailSourceFailed)
		return
	}
	now := time.Now().UTC()
	updated, err := h.store.UpdateTrack(r.Context(), track.ID, models.TrackUpdate{
		Title:         &product.Title,
		CurrentPrice:  &product.Price,
		LastCheckedAt: &now,
	})
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) comparePrice(w http.ResponseWriter, r *http.Request) {
	track, ok := h.ownedTrack(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, models.PriceComparison{
		TrackID:      track.ID,
		TargetPrice:  track.TargetPrice,
		CurrentPrice: track.CurrentPrice,
		Reached:      track.ThresholdReached(),
	})
}

func (h *Handler) deleteTrack(w http.ResponseWriter, r *http.Request) {
	track, ok := h.ownedTrack(w, r)
	if !ok {
		return
	}
	deleted, err := h.store.DeleteTrack(r.Context(), track.ID)
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	respondJSON(w, http.StatusOK, deleted)
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	track, ok := h.ownedTrack(w, r)
	if !ok {
		return
	}
	entries, err := h.store.History(r.Context(), track.ID)
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	if entries == nil {
		entries = []models.PriceHistoryEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// appendHistory records the track's current price as a history sample.
func (h *Handler) appendHistory(w http.ResponseWriter, r *http.Request) {
	track, ok := h.ownedTrack(w, r)
	if !ok {
		return
	}
	entry, err := h.store.AppendHistory(r.Context(), track.ID, track.CurrentPrice)
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}
