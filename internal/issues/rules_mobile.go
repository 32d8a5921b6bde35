package issues

import "github.com/user/siteaudit/internal/domain"

const manyFixedElements = 2

// mobileRules covers viewport configuration and mobile usability signals.
func mobileRules(page *domain.PageRecord) []domain.IssueTuple {
	m := page.Mobile
	if m == nil {
		return nil
	}

	var out []domain.IssueTuple

	if !m.HasViewport {
		out = append(out, tuple("mobile_missing_viewport", nil))
	}
	if m.IsZoomDisabled {
		out = append(out, tuple("mobile_zoom_disabled", nil))
	}
	if m.InitialScaleNotOne {
		out = append(out, tuple("mobile_initial_scale_not_one", nil))
	}
	if m.NonResponsiveImages > 0 {
		out = append(out, tuple("mobile_images_not_responsive", map[string]any{
			"count": m.NonResponsiveImages,
		}))
	}
	if m.TablesNotResponsive > 0 {
		out = append(out, tuple("mobile_tables_not_responsive", map[string]any{
			"count": m.TablesNotResponsive,
		}))
	}
	if m.FixedElements > manyFixedElements {
		out = append(out, tuple("mobile_fixed_elements_blocking", map[string]any{
			"count": m.FixedElements,
		}))
	}
	if m.SmallTextElements > 0 {
		out = append(out, tuple("mobile_small_font_size", map[string]any{
			"count": m.SmallTextElements,
		}))
	}
	if !m.HasAppleTouchIcon {
		out = append(out, tuple("mobile_no_apple_touch_icon", nil))
	}
	if !m.HasManifest {
		out = append(out, tuple("mobile_no_web_manifest", nil))
	}
	if !m.HasThemeColor {
		out = append(out, tuple("mobile_no_theme_color", nil))
	}
	if m.PhoneNumbersInBody > 0 && !m.HasTelLinks {
		out = append(out, tuple("mobile_no_tel_links", map[string]any{
			"phoneNumbers": m.PhoneNumbersInBody,
		}))
	}
	if m.LCPImageLazyLoaded {
		out = append(out, tuple("mobile_lcp_lazy_loaded", nil))
	}
	if !m.UsesMediaQueries {
		out = append(out, tuple("mobile_no_media_queries", nil))
	}

	return out
}
