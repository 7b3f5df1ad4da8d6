package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"requester",
			"user_id",
			"resource",
			"date",
			"time",
			"duration",
			"status",
			"created_at",
			"updated_at",
			"sequence",
			"start_minute",
			"end_minute",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"requester": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 320,
			},

			"resource": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},

			"date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"time": bson.M{
				"bsonType": "string",
			},

			"duration": bson.M{
				"bsonType": "string",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"approved",
					"rejected",
				},
			},

			"remarks": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},

			"sequence": bson.M{
				"bsonType": "long",
			},

			"start_minute": bson.M{
				"bsonType": "int",
				"minimum":  0,
				"maximum":  1439,
			},

			"end_minute": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  1440,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
