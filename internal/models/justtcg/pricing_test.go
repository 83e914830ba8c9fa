// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package justtcg

import "testing"

func TestPricingRequest_Normalize(t *testing.T) {
	tests := []struct {
		name          string
		req           PricingRequest
		wantCondition string
		wantPrinting  string
	}{
		{
			name:          "card lookup gets defaults",
			req:           PricingRequest{CardID: "c1"},
			wantCondition: DefaultCondition,
			wantPrinting:  DefaultPrinting,
		},
		{
			name:          "explicit filters preserved",
			req:           PricingRequest{CardID: "c1", Condition: "Lightly Played", Printing: "Foil"},
			wantCondition: "Lightly Played",
			wantPrinting:  "Foil",
		},
		{
			name:          "variant lookup untouched",
			req:           PricingRequest{VariantID: "v1"},
			wantCondition: "",
			wantPrinting:  "",
		},
		{
			name:          "name search gets defaults",
			req:           PricingRequest{Name: "Pikachu"},
			wantCondition: DefaultCondition,
			wantPrinting:  DefaultPrinting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Normalize()
			if tt.req.Condition != tt.wantCondition {
				t.Errorf("Condition = %q, want %q", tt.req.Condition, tt.wantCondition)
			}
			if tt.req.Printing != tt.wantPrinting {
				t.Errorf("Printing = %q, want %q", tt.req.Printing, tt.wantPrinting)
			}
		})
	}
}

func TestPricingRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     PricingRequest
		wantErr bool
	}{
		{name: "variant id", req: PricingRequest{VariantID: "v1"}, wantErr: false},
		{name: "tcgplayer id", req: PricingRequest{TCGPlayerID: "86688"}, wantErr: false},
		{name: "card id", req: PricingRequest{CardID: "c1"}, wantErr: false},
		{name: "name search", req: PricingRequest{Name: "Pikachu"}, wantErr: false},
		{name: "no identifier", req: PricingRequest{Condition: "Near Mint"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
