package dispatch

import "github.com/keysafe/corectl/internal/wire"

// opcodeNames names every opcode dispatch knows about, in the order
// spec §4.7 groups them into families. It doubles as the full opcode
// registry allOpcodes() walks to build the restriction allowlists.
var opcodeNames = map[wire.Opcode]string{
	wire.PING:            "PING",
	wire.GetDeviceStatus:  "GET_DEVICE_STATUS",
	wire.PlatInfo:         "PLAT_INFO",
	wire.GetDeviceIntSN:   "GET_DEVICE_INT_SN",
	wire.GetDiagData:      "GET_DIAG_DATA",

	wire.ImLocked:     "IM_LOCKED",
	wire.ImUnlocked:   "IM_UNLOCKED",
	wire.WakeUpDevice: "WAKE_UP_DEVICE",
	wire.SetCurSvc:    "SET_CUR_SVC",

	wire.GetDeviceSettings: "GET_DEVICE_SETTINGS",
	wire.SetDeviceSettings: "SET_DEVICE_SETTINGS",
	wire.GetUserSettings:   "GET_USER_SETTINGS",
	wire.GetCategoriesStr:  "GET_CATEGORIES_STR",
	wire.SetCategoriesStr:  "SET_CATEGORIES_STR",
	wire.GetUserKeybID:     "GET_USER_KEYB_ID",
	wire.SetUserKeybID:     "SET_USER_KEYB_ID",
	wire.GetUserLangID:     "GET_USER_LANG_ID",
	wire.SetUserLangID:     "SET_USER_LANG_ID",
	wire.GetDeviceLangID:   "GET_DEVICE_LANG_ID",
	wire.SetDeviceLangID:   "SET_DEVICE_LANG_ID",

	wire.AddUnknownCardID: "ADD_UNKNOWN_CARD_ID",
	wire.LockDevice:       "LOCK_DEVICE",
	wire.ResetUnknownCard: "RESET_UNKNOWN_CARD",
	wire.GetNbFreeUsers:   "GET_NB_FREE_USERS",
	wire.GetCurCardCPZ:    "GET_CUR_CARD_CPZ",

	wire.InformCurSvc: "INFORM_CUR_SVC",
	wire.GetCred:       "GET_CRED",
	wire.GetTotpCode:   "GET_TOTP_CODE",
	wire.StoreCred:     "STORE_CRED",
	wire.StoreTotpCred: "STORE_TOTP_CRED",
	wire.CheckPassword: "CHECK_PASSWORD",
	wire.ChangeNodePwd: "CHANGE_NODE_PWD",

	wire.TestFileID:     "TEST_FILE_ID",
	wire.CreateFileID:   "CREATE_FILE_ID",
	wire.AddNoteID:      "ADD_NOTE_ID",
	wire.AddFileDataID:  "ADD_FILE_DATA_ID",
	wire.AddNoteDataID:  "ADD_NOTE_DATA_ID",
	wire.GetFileDataID:  "GET_FILE_DATA_ID",
	wire.AccessNoteID:   "ACCESS_NOTE_ID",
	wire.ModifyFileID:   "MODIFY_FILE_ID",
	wire.ModifyNoteID:   "MODIFY_NOTE_ID",
	wire.DeleteFileID:   "DELETE_FILE_ID",
	wire.DeleteNoteID:   "DELETE_NOTE_ID",
	wire.ScanFileID:     "SCAN_FILE_ID",
	wire.ScanNoteID:     "SCAN_NOTE_ID",

	wire.StartMMM:           "START_MMM",
	wire.EndMMM:             "END_MMM",
	wire.ReadNode:           "READ_NODE",
	wire.WriteNode:          "WRITE_NODE",
	wire.GetFreeNodes:       "GET_FREE_NODES",
	wire.GetStartParents:    "GET_START_PARENTS",
	wire.SetCredStartParent: "SET_CRED_START_PARENT",
	wire.SetDataStartParent: "SET_DATA_START_PARENT",
	wire.SetStartParents:    "SET_START_PARENTS",
	wire.GetCredChangeNb:    "GET_CRED_CHANGE_NB",
	wire.SetCredChangeNb:    "SET_CRED_CHANGE_NB",
	wire.GetDataChangeNb:    "GET_DATA_CHANGE_NB",
	wire.SetDataChangeNb:    "SET_DATA_CHANGE_NB",
	wire.GetCtrValue:        "GET_CTR_VALUE",
	wire.SetCtrValue:        "SET_CTR_VALUE",
	wire.GetFavorite:        "GET_FAVORITE",
	wire.SetFavorite:        "SET_FAVORITE",
	wire.GetFavorites:       "GET_FAVORITES",
	wire.GetCpzLutEntry:     "GET_CPZ_LUT_ENTRY",

	wire.PrepareSnFlash:   "PREPARE_SN_FLASH",
	wire.SetDeviceSn:      "SET_DEVICE_SN",
	wire.SwitchOffNxtDsc:  "SWITCH_OFF_NXT_DSC",

	wire.DevAuthChallenge: "DEV_AUTH_CHALLENGE",

	wire.Get32bRng: "GET_32B_RNG",
	wire.SetDate:   "SET_DATE",

	wire.StartBundleUL:    "START_BUNDLE_UL",
	wire.BundleWrite256B:  "BUNDLE_WRITE_256B",
	wire.BundleUlDone:     "BUNDLE_UL_DONE",

	wire.SetCurCategory: "SET_CUR_CATEGORY",
	wire.GetCurCategory: "GET_CUR_CATEGORY",
}

// buildHandlerTable wires every named opcode to its handler. An opcode
// present in opcodeNames but missing here does not panic: the map
// lookup returns !ok, which Dispatch turns into an NA response, so no
// entry is strictly required — but
// every opcode in spec §4.7 has a concrete implementation below.
func buildHandlerTable() map[wire.Opcode]handlerFunc {
	return map[wire.Opcode]handlerFunc{
		wire.PING:           handlePing,
		wire.GetDeviceStatus: handleGetDeviceStatus,
		wire.PlatInfo:        handlePlatInfo,
		wire.GetDeviceIntSN:  handleGetDeviceIntSN,
		wire.GetDiagData:     handleGetDiagData,

		wire.ImLocked:     handleImLocked,
		wire.ImUnlocked:   handleImUnlocked,
		wire.WakeUpDevice: handleWakeUpDevice,
		wire.SetCurSvc:    handleSetCurSvc,

		wire.GetDeviceSettings: handleGetDeviceSettings,
		wire.SetDeviceSettings: handleSetDeviceSettings,
		wire.GetUserSettings:   handleGetUserSettings,
		wire.GetCategoriesStr:  handleGetCategoriesStr,
		wire.SetCategoriesStr:  handleSetCategoriesStr,
		wire.GetUserKeybID:     handleGetUserKeybID,
		wire.SetUserKeybID:     handleSetUserKeybID,
		wire.GetUserLangID:     handleGetUserLangID,
		wire.SetUserLangID:     handleSetUserLangID,
		wire.GetDeviceLangID:   handleGetDeviceLangID,
		wire.SetDeviceLangID:   handleSetDeviceLangID,

		wire.AddUnknownCardID: handleAddUnknownCardID,
		wire.LockDevice:       handleLockDevice,
		wire.ResetUnknownCard: handleResetUnknownCard,
		wire.GetNbFreeUsers:   handleGetNbFreeUsers,
		wire.GetCurCardCPZ:    handleGetCurCardCPZ,

		wire.InformCurSvc: handleInformCurSvc,
		wire.GetCred:       handleGetCred,
		wire.GetTotpCode:   handleGetTotpCode,
		wire.StoreCred:     handleStoreCred,
		wire.StoreTotpCred: handleStoreTotpCred,
		wire.CheckPassword: handleCheckPassword,
		wire.ChangeNodePwd: handleChangeNodePwd,

		wire.TestFileID:    handleTestFileID,
		wire.CreateFileID:  handleCreateFileID,
		wire.AddNoteID:     handleAddNoteID,
		wire.AddFileDataID: handleAddFileDataID,
		wire.AddNoteDataID: handleAddNoteDataID,
		wire.GetFileDataID: handleGetFileDataID,
		wire.AccessNoteID:  handleAccessNoteID,
		wire.ModifyFileID:  handleModifyFileID,
		wire.ModifyNoteID:  handleModifyNoteID,
		wire.DeleteFileID:  handleDeleteFileID,
		wire.DeleteNoteID:  handleDeleteNoteID,
		wire.ScanFileID:    handleScanFileID,
		wire.ScanNoteID:    handleScanNoteID,

		wire.StartMMM:           handleStartMMM,
		wire.EndMMM:             handleEndMMM,
		wire.ReadNode:           handleReadNode,
		wire.WriteNode:          handleWriteNode,
		wire.GetFreeNodes:       handleGetFreeNodes,
		wire.GetStartParents:    handleGetStartParents,
		wire.SetCredStartParent: handleSetCredStartParent,
		wire.SetDataStartParent: handleSetDataStartParent,
		wire.SetStartParents:    handleSetStartParents,
		wire.GetCredChangeNb:    handleGetCredChangeNb,
		wire.SetCredChangeNb:    handleSetCredChangeNb,
		wire.GetDataChangeNb:    handleGetDataChangeNb,
		wire.SetDataChangeNb:    handleSetDataChangeNb,
		wire.GetCtrValue:        handleGetCtrValue,
		wire.SetCtrValue:        handleSetCtrValue,
		wire.GetFavorite:        handleGetFavorite,
		wire.SetFavorite:        handleSetFavorite,
		wire.GetFavorites:       handleGetFavorites,
		wire.GetCpzLutEntry:     handleGetCpzLutEntry,

		wire.PrepareSnFlash:  handlePrepareSnFlash,
		wire.SetDeviceSn:     handleSetDeviceSn,
		wire.SwitchOffNxtDsc: handleSwitchOffNxtDsc,

		wire.DevAuthChallenge: handleDevAuthChallenge,

		wire.Get32bRng: handleGet32bRng,
		wire.SetDate:   handleSetDate,

		wire.StartBundleUL:   handleStartBundleUL,
		wire.BundleWrite256B: handleBundleWrite256B,
		wire.BundleUlDone:    handleBundleUlDone,

		wire.SetCurCategory: handleSetCurCategory,
		wire.GetCurCategory: handleGetCurCategory,
	}
}
