// cmd/web/main.go
package main

import (
	"context"
	"log"

	"cloud.google.com/go/firestore"
	"github.com/gin-gonic/gin"

	"github.com/jdcredvip/crm-backend/internal/api/handlers"
	"github.com/jdcredvip/crm-backend/internal/api/middleware"
	"github.com/jdcredvip/crm-backend/internal/api/responses"
	"github.com/jdcredvip/crm-backend/internal/config"
	"github.com/jdcredvip/crm-backend/internal/core/auth"
	"github.com/jdcredvip/crm-backend/internal/core/importacao"
	"github.com/jdcredvip/crm-backend/internal/core/mapping"
	"github.com/jdcredvip/crm-backend/internal/repository"
)

// initFirestoreClient inicializa o cliente Firestore usado pelo módulo de
// autenticação.
func initFirestoreClient(ctx context.Context, cfg *config.AppConfig) *firestore.Client {
	client, err := firestore.NewClientWithDatabase(ctx, cfg.FirestoreProjectID, cfg.FirestoreDatabaseID)
	if err != nil {
		log.Fatalf("Erro ao inicializar cliente Firestore para o banco '%s': %v\n", cfg.FirestoreDatabaseID, err)
	}
	log.Printf("Conectado com sucesso ao Firestore, banco de dados: %s", cfg.FirestoreDatabaseID)
	return client
}

func main() {
	responses.InitLogger()
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()
	firestoreClient := initFirestoreClient(ctx, cfg)
	defer firestoreClient.Close()

	db, err := repository.InitDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Erro ao abrir o banco de dados em '%s': %v\n", cfg.DatabasePath, err)
	}
	defer db.Close()

	importRepo := repository.NewImportRepo(db)
	historyRepo := repository.NewHistoryRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	importacaoService := importacao.NewService(mapping.DefaultConfig())
	pipeline := importacao.NewPipeline(importacaoService, importRepo, historyRepo, auditRepo, responses.Logger())
	authService := auth.NewService(firestoreClient, []byte(cfg.JWTSecret))

	importacaoHandler := handlers.NewImportacaoHandler(importacaoService, pipeline, historyRepo)
	triagemHandler := handlers.NewTriagemHandler()
	authHandler := handlers.NewAuthHandler(authService)

	router := gin.Default()
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/login", authHandler.Login)

		protected := apiV1.Group("/")
		protected.Use(middleware.AuthMiddleware([]byte(cfg.JWTSecret)))
		{
			imp := protected.Group("/importacoes")
			imp.Use(middleware.PermissionMiddleware("importacao"))
			{
				imp.POST("/upload", importacaoHandler.HandleUpload)
				imp.POST("/analisar", importacaoHandler.HandleAnalisar)
				imp.POST("/colunas/sugestoes", importacaoHandler.HandleSugerirColunas)
				imp.GET("/historico", importacaoHandler.HandleHistorico)
				imp.DELETE("/historico/:id", importacaoHandler.HandleRemover)
				imp.POST("/limpar", importacaoHandler.HandleLimpar)
			}

			protected.POST("/triagem/aplicar", triagemHandler.HandleAplicarRegras)
			protected.GET("/triagem/parametros", triagemHandler.HandleParametros)
		}
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})

	log.Printf("🚀 Servidor iniciado e escutando na porta %s", cfg.Port)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Falha ao iniciar o servidor: ", err)
	}
}
