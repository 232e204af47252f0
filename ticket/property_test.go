package ticket

import (
	"testing"

	"pgregory.net/rapid"
)

func claimString(t *rapid.T, label string, def string) string {
	return rapid.OneOf(rapid.Just(def), rapid.String()).Draw(t, label)
}

// Decoding an encoded ticket reproduces every field; placeholder-compressed fields come back as
// their default, which equals the value that was written.
func TestEncodeDecode_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := &Identity{
			AuthenticationType: rapid.String().Draw(t, "authType"),
			NameClaimType:      claimString(t, "nameType", DefaultNameClaimType),
			RoleClaimType:      claimString(t, "roleType", DefaultRoleClaimType),
		}
		n := rapid.IntRange(0, 8).Draw(t, "claims")
		for i := 0; i < n; i++ {
			issuer := claimString(t, "issuer", DefaultIssuer)
			id.Claims = append(id.Claims, Claim{
				Type:           claimString(t, "type", id.NameClaimType),
				Value:          rapid.String().Draw(t, "value"),
				ValueType:      claimString(t, "valueType", DefaultValueType),
				Issuer:         issuer,
				OriginalIssuer: claimString(t, "originalIssuer", issuer),
			})
		}
		props := &Properties{Items: rapid.MapOf(rapid.String(), rapid.String()).Draw(t, "items")}

		data, err := Encode(New(id, props))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}

		want := normalizeIdentity(id)
		// The placeholder itself is indistinguishable from "default".
		if want.NameClaimType == placeholder {
			want.NameClaimType = DefaultNameClaimType
		}
		if want.RoleClaimType == placeholder {
			want.RoleClaimType = DefaultRoleClaimType
		}
		for i := range want.Claims {
			c := &want.Claims[i]
			if c.Type == placeholder {
				c.Type = want.NameClaimType
			}
			if c.ValueType == placeholder {
				c.ValueType = DefaultValueType
			}
			if c.Issuer == placeholder {
				c.Issuer = DefaultIssuer
			}
			if c.OriginalIssuer == placeholder {
				c.OriginalIssuer = c.Issuer
			}
		}

		if got.Identity.AuthenticationType != want.AuthenticationType ||
			got.Identity.NameClaimType != want.NameClaimType ||
			got.Identity.RoleClaimType != want.RoleClaimType ||
			len(got.Identity.Claims) != len(want.Claims) {
			t.Fatalf("identity = %+v, want %+v", got.Identity, want)
		}
		for i := range want.Claims {
			if got.Identity.Claims[i] != want.Claims[i] {
				t.Fatalf("claim %d = %+v, want %+v", i, got.Identity.Claims[i], want.Claims[i])
			}
		}
		if len(got.Properties.Items) != len(props.Items) {
			t.Fatalf("properties = %v, want %v", got.Properties.Items, props.Items)
		}
		for k, v := range props.Items {
			if got.Properties.Items[k] != v {
				t.Fatalf("property %q = %q, want %q", k, got.Properties.Items[k], v)
			}
		}
	})
}
