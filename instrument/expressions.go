package instrument

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/afzaal-28/rn-inspector/types"
)

const (
	errStorageHelperMissing    = "Storage helper not injected"
	errUIHelperMissing         = "UI helper not injected"
	errNavigationHandlerAbsent = "Navigation handler not available"
)

// FetchStorageExpression asks the storage helper to report a snapshot under
// requestID. Without the helper the target reports an error in its place.
func FetchStorageExpression(requestID string) string {
	return fmt.Sprintf(
		"(function(){var g=globalThis;if(g&&typeof g.__RN_INSPECTOR_FETCH_STORAGE__==='function'){g.__RN_INSPECTOR_FETCH_STORAGE__(%s);}else{console.log(%s);}})()",
		jsString(requestID),
		jsString(SentinelStorage+":"+storageFailure(requestID, errStorageHelperMissing)),
	)
}

// MutateStorageExpression forwards a mutation to the storage helper.
func MutateStorageExpression(mutation types.StorageMutation) (string, error) {
	data, err := json.Marshal(mutation)
	if err != nil {
		return "", fmt.Errorf("failed to encode storage mutation: %w", err)
	}

	return fmt.Sprintf(
		"(function(){var g=globalThis;if(g&&typeof g.__RN_INSPECTOR_MUTATE_STORAGE__==='function'){g.__RN_INSPECTOR_MUTATE_STORAGE__(%s);}else{console.log(%s);}})()",
		data,
		jsString(SentinelStorage+":"+storageFailure(mutation.RequestID, errStorageHelperMissing)),
	), nil
}

// FetchUIExpression asks the UI helper for the current component tree.
func FetchUIExpression(requestID string) string {
	fallback, _ := sjson.Set(`{"tree":null}`, "requestId", requestID)
	fallback, _ = sjson.Set(fallback, "error", errUIHelperMissing)

	return fmt.Sprintf(
		"(function(){var g=globalThis;if(g&&typeof g.__RN_INSPECTOR_FETCH_UI__==='function'){g.__RN_INSPECTOR_FETCH_UI__(%s);}else{console.log(%s);}})()",
		jsString(requestID),
		jsString(SentinelUI+":"+fallback),
	)
}

// NavigationExpression invokes a registered control handler with payload and
// reports its result, or its failure, on the navigation sentinel.
func NavigationExpression(requestID, command string, payload json.RawMessage) string {
	args := "{}"
	if len(payload) > 0 && json.Valid(payload) {
		args = string(payload)
	}

	return fmt.Sprintf(
		"(function(){var g=globalThis;var h=g&&g.__RN_INSPECTOR_CONTROL_HANDLERS__;"+
			"var out={type:'command-result',requestId:%[1]s,command:%[2]s,ts:new Date().toISOString()};"+
			"var report=function(){console.log(%[3]s+JSON.stringify(out));};"+
			"var fail=function(e){out.error=String(e&&e.message||e);report();};"+
			"if(!h||typeof h[%[2]s]!=='function'){out.error=%[4]s;report();return;}"+
			"try{var r=h[%[2]s](%[5]s);"+
			"if(r&&typeof r.then==='function'){r.then(function(v){out.result=v===undefined?null:v;report();},fail);return;}"+
			"out.result=r===undefined?null:r;report();}catch(e){fail(e);}})()",
		jsString(requestID),
		jsString(command),
		jsString(SentinelNavigation+":"),
		jsString(errNavigationHandlerAbsent),
		args,
	)
}

func storageFailure(requestID, message string) string {
	doc, _ := sjson.Set("{}", "requestId", requestID)
	doc, _ = sjson.Set(doc, "asyncStorage.error", message)
	doc, _ = sjson.Set(doc, "redux.error", message)
	doc, _ = sjson.Set(doc, "error", message)

	return doc
}
