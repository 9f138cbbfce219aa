package utils

//run redis (sessions and jobs)
//docker run -p 6379:6379 -d redis

//qdrant, VECTOR_BACKEND=qdrant
//docker run -p 6333:6333 -p 6334:6334 -v vectorDBData:/qdrant/storage qdrant/qdrant

//postgres with pgvector, VECTOR_BACKEND=pgvector
//docker run -p 5432:5432 -e POSTGRES_PASSWORD=postgres -e POSTGRES_DB=rightsbot -d pgvector/pgvector:pg16

//swagger init
//swag init -g cmd/api/main.go --parseDependency --parseInternal --dir ./ --output ./cmd/api/docs
