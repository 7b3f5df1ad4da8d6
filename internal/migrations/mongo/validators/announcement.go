package validators

import "go.mongodb.org/mongo-driver/bson"

var AnnouncementValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "content", "posted_by", "created_at", "sequence"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"content": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 5000,
			},
			"posted_by": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
			"sequence": bson.M{
				"bsonType": "long",
			},
		},
	},
}

var LockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "token", "expires_at"},
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string"},
			"token":      bson.M{"bsonType": "string"},
			"expires_at": bson.M{"bsonType": "date"},
		},
	},
}
