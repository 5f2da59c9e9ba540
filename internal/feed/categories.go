package feed

import "bam_sniper/internal/model"

// CategoryConfig describes one feed/category pair exposed by the BAM
// APIs. The regular API is filtered per category by asset type; the
// auction API has a single unfiltered stream.
type CategoryConfig struct {
	FeedType         model.FeedType
	Label            string
	AssetTypes       []string
	PropertyTypeHint string
	SaleChannel      string
}

// Key returns the config's feed/category partition key.
func (c CategoryConfig) Key() model.FeedKey {
	return model.FeedKey{FeedType: c.FeedType, Category: c.Label}
}

// Categories returns the configured feed/category pairs in their fixed
// probe and plan order.
func Categories() []CategoryConfig {
	return []CategoryConfig{
		{FeedType: model.FeedRegular, Label: "General Feed", AssetTypes: nil, PropertyTypeHint: "Mixed", SaleChannel: "standard"},
		{FeedType: model.FeedRegular, Label: "Single Houses", AssetTypes: []string{"บ้านเดี่ยว"}, PropertyTypeHint: "บ้านเดี่ยว", SaleChannel: "standard"},
		{FeedType: model.FeedRegular, Label: "Townhouses", AssetTypes: []string{"ทาวน์เฮ้าส์"}, PropertyTypeHint: "ทาวน์เฮ้าส์", SaleChannel: "standard"},
		{FeedType: model.FeedRegular, Label: "Condos", AssetTypes: []string{"ห้องชุดพักอาศัย"}, PropertyTypeHint: "ห้องชุดพักอาศัย", SaleChannel: "standard"},
		{FeedType: model.FeedRegular, Label: "Vacant Land", AssetTypes: []string{"ที่ดินเปล่า"}, PropertyTypeHint: "ที่ดินเปล่า", SaleChannel: "standard"},
		{FeedType: model.FeedRegular, Label: "Commercial Buildings", AssetTypes: []string{"อาคารพาณิชย์"}, PropertyTypeHint: "อาคารพาณิชย์", SaleChannel: "standard"},
		{FeedType: model.FeedAuction, Label: "Auction", AssetTypes: nil, PropertyTypeHint: "Auction", SaleChannel: "auction"},
	}
}
