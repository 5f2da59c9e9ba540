package feed

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"bam_sniper/internal/model"
)

var numberRe = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// normalizeRegular maps one raw item from the regular search API onto a
// RawListing. Field fallback chains follow the feed's observed quirks:
// prices hide behind several discount fields, areas behind three unit
// variants, and coordinates behind misspelled keys.
func normalizeRegular(item map[string]any, cat CategoryConfig) model.RawListing {
	assetNo := stringVal(item["assetNo"])
	if assetNo == "" {
		assetNo = stringVal(item["id"])
	}

	title := stringVal(item["projectTH"])
	if title == "" {
		title = stringVal(item["assetType"])
	}
	if title == "" {
		title = "NPA Asset"
		if assetNo != "" {
			title = "NPA Asset " + assetNo
		}
	}

	price := firstFloat(item, "sellPrice", "shockPrice", "discountPrice")
	size := firstFloat(item, "usableArea", "areaMeter", "areaWa")

	bedrooms := extractNumber(firstString(item, "bedroom", "studio"))
	bathrooms := extractNumber(stringVal(item["bathroom"]))
	rooms := extractNumber(stringVal(item["rooms"]))
	if rooms == nil {
		rooms = bedrooms
	}

	mapInfo, _ := item["map"].(map[string]any)
	if mapInfo == nil {
		mapInfo, _ = item["geoMap"].(map[string]any)
	}
	var lat, lon float64
	if mapInfo != nil {
		lat = firstFloat(mapInfo, "langtitude", "latitude")
		lon = firstFloat(mapInfo, "longtitude", "longitude")
	}

	photos := gatherImages(
		item["albumProperty"],
		item["media"],
		item["albumPackage1"],
		item["albumPackage2"],
		item["albumPackage3"],
	)
	if mapInfo != nil {
		photos = append(photos, gatherImages(
			mapInfo["imageUrl"],
			mapInfo["imageUrl360"],
			mapInfo["mapImage"],
		)...)
	}

	description := firstString(item, "propertyDetail", "summary", "location")
	contact := combineContact(
		firstString(item, "adminName", "adminNameConx"),
		stringVal(item["telephone"]),
		stringVal(item["workPhone"]),
		stringVal(item["workPhoneNxt"]),
		stringVal(item["workPhoneConx"]),
	)
	bank := firstString(item, "departmentName", "groupOfDepartment", "groupProperty")
	if bank == "" {
		bank = "BAM"
	}

	propertyType := stringVal(item["assetType"])
	if propertyType == "" {
		propertyType = cat.PropertyTypeHint
	}

	url := "https://www.bam.co.th/asset/"
	if assetNo != "" {
		url += assetNo
	} else {
		url = ""
	}

	return model.RawListing{
		URL:          url,
		Source:       "BAM",
		Title:        title,
		Description:  description,
		Price:        price,
		SizeSqm:      size,
		Lat:          lat,
		Lon:          lon,
		Location:     buildLocation(item),
		Contact:      contact,
		Bank:         bank,
		Photos:       dedupeImages(photos),
		PropertyType: propertyType,
		SaleChannel:  cat.SaleChannel,
		Bedrooms:     bedrooms,
		Bathrooms:    bathrooms,
		Rooms:        rooms,
	}
}

// normalizeAuction maps one raw item from the auction search API.
func normalizeAuction(item map[string]any) model.RawListing {
	price := firstFloat(item,
		"priceSetByCommittee",
		"priceEstimateOfLegalOfficer",
		"priceEstimateOfReciveorship",
	)

	var size float64
	if n := extractNumber(stringVal(item["area"])); n != nil {
		size = *n
	}

	caseNo := firstString(item, "caseno", "caseNo")
	url := stringVal(item["assetUrl"])
	if url != "" && caseNo != "" {
		url = fmt.Sprintf("%s?case=%s", url, caseNo)
	}

	var descBits []string
	for _, bit := range []string{
		stringVal(item["address"]),
		auctionWindow(item),
		stringVal(item["placeAuction"]),
		stringVal(item["conditionBidder"]),
	} {
		if bit != "" {
			descBits = append(descBits, bit)
		}
	}

	title := stringVal(item["assetType"])
	if title == "" {
		title = "Auction Asset"
	}
	propertyType := stringVal(item["assetType"])
	if propertyType == "" {
		propertyType = "Auction"
	}

	location := strings.TrimSpace(fmt.Sprintf("%s, %s | %s",
		stringVal(item["province"]),
		stringVal(item["district"]),
		stringVal(item["address"]),
	))

	bedrooms := extractNumber(stringVal(item["bedroom"]))
	bathrooms := extractNumber(stringVal(item["bathroom"]))
	rooms := extractNumber(stringVal(item["rooms"]))
	if rooms == nil {
		rooms = bedrooms
	}

	photos := gatherImages(item["assetImage"], item["images"], item["mapImage"])

	return model.RawListing{
		URL:          url,
		Source:       "BAM",
		Title:        title,
		Description:  strings.Join(descBits, " | "),
		Price:        price,
		SizeSqm:      size,
		Location:     location,
		Contact:      combineContact(stringVal(item["contact"]), stringVal(item["claimant"])),
		Bank:         "BAM Auction",
		Photos:       dedupeImages(photos),
		PropertyType: propertyType,
		SaleChannel:  "auction",
		Bedrooms:     bedrooms,
		Bathrooms:    bathrooms,
		Rooms:        rooms,
	}
}

func auctionWindow(item map[string]any) string {
	start := stringVal(item["startDate"])
	end := stringVal(item["endDate"])
	if start == "" && end == "" {
		return ""
	}
	return fmt.Sprintf("Auction window %s - %s", start, end)
}

// buildLocation assembles the display location from province, district,
// and subdistrict, with the free-text property location appended.
func buildLocation(item map[string]any) string {
	var parts []string
	for _, key := range []string{"province", "district", "subDistrict"} {
		if v := stringVal(item[key]); v != "" {
			parts = append(parts, v)
		}
	}
	core := strings.Join(parts, ", ")
	propLoc := stringVal(item["propertyLocation"])

	switch {
	case propLoc != "" && core != "":
		return core + " | " + propLoc
	case propLoc != "":
		return propLoc
	case core != "":
		return core
	}
	if v := stringVal(item["location"]); v != "" {
		return v
	}
	return "Unknown"
}

// combineContact joins a contact name with whatever phone numbers the
// item carries.
func combineContact(name string, phones ...string) string {
	var kept []string
	for _, p := range phones {
		if p != "" {
			kept = append(kept, p)
		}
	}
	phoneText := strings.Join(kept, ", ")
	switch {
	case name != "" && phoneText != "":
		return fmt.Sprintf("%s (%s)", name, phoneText)
	case name != "":
		return name
	}
	return phoneText
}

// gatherImages collects image URLs from the feed's mix of string,
// object, and list-valued media fields.
func gatherImages(sources ...any) []string {
	var images []string
	for _, source := range sources {
		switch v := source.(type) {
		case nil:
			continue
		case string:
			if v != "" {
				images = append(images, v)
			}
		case map[string]any:
			if u := stringVal(v["url"]); u != "" {
				images = append(images, u)
			}
		case []any:
			for _, entry := range v {
				switch e := entry.(type) {
				case string:
					if e != "" {
						images = append(images, e)
					}
				case map[string]any:
					if u := stringVal(e["url"]); u != "" {
						images = append(images, u)
					}
				}
			}
		}
	}
	return images
}

func dedupeImages(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	var deduped []string
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		deduped = append(deduped, u)
	}
	return deduped
}

// stringVal renders a feed value as a string. Numeric IDs lose any
// spurious ".0" suffix the JSON decoding introduces.
func stringVal(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprintf("%v", v)
}

// floatVal coerces a feed value to float64, returning 0 when it cannot
// be parsed.
func floatVal(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// firstFloat returns the first positive float among the given keys.
func firstFloat(item map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if f := floatVal(item[key]); f > 0 {
			return f
		}
	}
	return 0
}

// firstString returns the first non-empty string among the given keys.
func firstString(item map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringVal(item[key]); s != "" {
			return s
		}
	}
	return ""
}

// extractNumber pulls the first numeric token out of free text, e.g.
// "3 ห้องนอน" -> 3.
func extractNumber(text string) *float64 {
	if text == "" {
		return nil
	}
	match := numberRe.FindString(text)
	if match == "" {
		return nil
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &f
}
