/*
Package handler provides HTTP handler functions for the shop and the avatar fitting room.
*/
package handler

import (
	"context"
	"net/http"

	"speechquest/internal/app/catalog"
	"speechquest/internal/app/profile"
	"speechquest/internal/app/shop"
	"speechquest/internal/pkg/req"
	"speechquest/internal/pkg/resp"
)

type ItemInput struct {
	ItemID string `json:"itemId" validate:"required"`
}

type AvatarOutput struct {
	Points         int            `json:"points"`
	PurchasedItems []catalog.Item `json:"purchasedItems"`
	EquippedItems  []catalog.Item `json:"equippedItems"`
}

// HandleListItems returns the catalog annotated with ownership.
func HandleListItems(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := currentProfile(deps, w, r)
		if p == nil {
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"points": p.Wallet.Balance(),
			"items":  deps.Shop.Items(p),
		})
	}
}

// HandlePurchase buys one item with points.
func HandlePurchase(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := currentProfile(deps, w, r)
		if p == nil {
			return
		}

		var input ItemInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		receipt, err := deps.Shop.Purchase(r.Context(), p, input.ItemID)
		if err != nil {
			respondDomainErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, receipt)
	}
}

// HandleGetAvatar returns the owned and equipped items.
func HandleGetAvatar(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := currentProfile(deps, w, r)
		if p == nil {
			return
		}
		resp.RespondSuccess(w, r, avatarOf(p, p.Wardrobe.EquippedItems()))
	}
}

// HandleEquip wears an owned item.
func HandleEquip(deps *AppDeps) http.HandlerFunc {
	return handleWardrobeChange(deps, (*shop.Service).Equip)
}

// HandleUnequip takes an item off.
func HandleUnequip(deps *AppDeps) http.HandlerFunc {
	return handleWardrobeChange(deps, (*shop.Service).Unequip)
}

type wardrobeOp func(*shop.Service, context.Context, *profile.Profile, string) ([]catalog.Item, error)

func handleWardrobeChange(deps *AppDeps, op wardrobeOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := currentProfile(deps, w, r)
		if p == nil {
			return
		}

		var input ItemInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		equipped, err := op(deps.Shop, r.Context(), p, input.ItemID)
		if err != nil {
			respondDomainErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, avatarOf(p, equipped))
	}
}

func avatarOf(p *profile.Profile, equipped []catalog.Item) AvatarOutput {
	return AvatarOutput{
		Points:         p.Wallet.Balance(),
		PurchasedItems: p.Wardrobe.Purchased(),
		EquippedItems:  equipped,
	}
}
