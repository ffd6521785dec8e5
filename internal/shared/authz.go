package shared

// Permission names used by route guards.
const (
	PermStockView  = "stock.view"
	PermStockEdit  = "stock.edit"
	PermReqView    = "requisition.view"
	PermReqCreate  = "requisition.create"
	PermReqApprove = "requisition.approve"
	PermReqFulfill = "requisition.fulfill"
	PermAssetView  = "asset.view"
	PermAssetEdit  = "asset.edit"
	PermMasterView = "masterdata.view"
	PermMasterEdit = "masterdata.edit"
	PermAuditView  = "audit.view"
	PermAdmin      = "admin.manage"
)
