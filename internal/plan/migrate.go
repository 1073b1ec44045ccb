package plan

// MigrateDocument upgrades a decoded state document to the current schema
// version. It operates on the raw map so fields it does not understand are
// carried through untouched, and it is idempotent: a document already at
// the current version is returned unchanged.
//
// Version history:
//
//	1.0 (or unstamped): topics carried a boolean "done" flag instead of
//	    the three-valued status enum.
//	2.0: current.
func MigrateDocument(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}

	version, _ := doc["schema_version"].(string)
	if version == "" {
		version = "1.0"
	}
	if version == SchemaVersion {
		return doc
	}

	migrateTopicsV1(doc)
	doc["schema_version"] = SchemaVersion
	return doc
}

func migrateTopicsV1(doc map[string]any) {
	planData, _ := doc["plan_data"].(map[string]any)
	if planData == nil {
		return
	}
	subjects, _ := planData["subjects"].([]any)
	for _, s := range subjects {
		subject, _ := s.(map[string]any)
		if subject == nil {
			continue
		}
		topics, _ := subject["topics"].([]any)
		for _, t := range topics {
			topic, _ := t.(map[string]any)
			if topic == nil {
				continue
			}
			if _, hasStatus := topic["status"]; hasStatus {
				continue
			}
			if done, ok := topic["done"].(bool); ok {
				if done {
					topic["status"] = string(TopicDone)
				} else {
					topic["status"] = string(TopicPending)
				}
				delete(topic, "done")
			} else {
				topic["status"] = string(TopicPending)
			}
		}
	}
}
